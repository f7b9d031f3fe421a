package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/simon020286/go-autopilot/models"
)

// compileScript wraps user code in a function so it may use return.
// Syntax errors are reported as parameter errors at construction time.
func compileScript(name, code string) (*goja.Program, error) {
	return compileFunction(name, code, true)
}

// compileFunction compiles code as the body of a function taking args.
// When invoke is set the function is called immediately, otherwise the
// program evaluates to the function itself.
func compileFunction(name, code string, invoke bool, args ...string) (*goja.Program, error) {
	src := "(function(" + strings.Join(args, ", ") + ") {\n" + code + "\n})"
	if invoke {
		src += "()"
	}
	program, err := goja.Compile(name, src, false)
	if err != nil {
		return nil, models.ErrInvalidParam("script does not compile: %v", err)
	}
	return program, nil
}

func newRuntime() *goja.Runtime {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	return vm
}

// interruptOnDone stops vm when ctx is cancelled. The returned function
// releases the watcher.
func interruptOnDone(ctx context.Context, vm *goja.Runtime) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return func() { close(done) }
}

// scriptFailure maps a runtime failure to the caller's context error when
// the script was interrupted, to a scripterror otherwise.
func scriptFailure(ctx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) && ctx.Err() != nil {
		return ctx.Err()
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return models.ErrDomain("", models.CodeScriptError, exception.Error())
	}
	return models.ErrDomain("", models.CodeScriptError, err.Error())
}

// runScript executes program in a fresh runtime that only sees globals.
// The runtime is interrupted when ctx is cancelled.
func runScript(ctx context.Context, program *goja.Program, setup func(vm *goja.Runtime) error) (any, error) {
	vm := newRuntime()
	if err := setup(vm); err != nil {
		return nil, fmt.Errorf("failed to prepare script runtime: %w", err)
	}

	stop := interruptOnDone(ctx, vm)
	defer stop()

	result, err := vm.RunProgram(program)
	if err != nil {
		return nil, scriptFailure(ctx, err)
	}
	if result == nil {
		return nil, nil
	}
	return result.Export(), nil
}
