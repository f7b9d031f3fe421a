package models

import (
	"context"
	"io"
)

// StepInfo identifies a step inside a workflow.
type StepInfo struct {
	Type string `json:"type"`
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

// StepConfig is what a factory receives to build a step.
// Context maps the alias the step reads under to the id of the step that
// published the data.
type StepConfig struct {
	Type    string
	ID      string
	Name    string
	Params  map[string]any
	Context map[string]string
}

// Step is the contract every workflow step implements.
// The engine drives it in this order: ResolveContext, BindSession, Setup,
// Run, Cleanup. Output is published under the step id once Run succeeded.
type Step interface {
	Info() StepInfo
	// RequiredParams lists the parameters checked at construction time
	RequiredParams() []string
	// Endpoints lists the remote operations the step calls
	Endpoints() []string
	BindSession(session Session) error
	ResolveContext(shared *Context) error
	Setup(ctx context.Context) error
	Run(ctx context.Context) error
	Cleanup(ctx context.Context) error
	Output() map[string]any
}

// Identity is the authenticated user as reported by the remote service.
type Identity struct {
	Username string `json:"username"`
	UserID   int64  `json:"userid"`
	FullName string `json:"fullname,omitempty"`
	SiteName string `json:"sitename,omitempty"`
}

// Session is the part of the API session steps are allowed to use.
type Session interface {
	// HasOperation reports whether the operation was discovered at connect time
	HasOperation(name string) bool
	// Call invokes an operation by its full name
	Call(ctx context.Context, operation string, params map[string]any) (any, error)
	// Invoke dispatches through the module/verb/resource namespace,
	// accepting abbreviated resources
	Invoke(ctx context.Context, module, verb, resource string, params map[string]any) (any, error)
	// Download streams a protected file authenticated with the private key
	Download(ctx context.Context, fileURL string, w io.Writer) error
	User() Identity
}
