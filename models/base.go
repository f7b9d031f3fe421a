package models

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// Requirements declares what a step needs before it can run.
type Requirements struct {
	Params    []string
	Endpoints []string
}

// Base carries the behaviour shared by every step: parameter validation,
// capability checks, context resolution and output collection.
// Concrete steps embed *Base and implement Run.
type Base struct {
	info      StepInfo
	params    map[string]any
	bindings  map[string]string
	required  []string
	endpoints []string

	session Session
	view    ContextView

	mu     sync.Mutex
	output map[string]any
}

// NewBase validates cfg against req and returns the shared step state.
// A missing required parameter fails here, before any remote call.
func NewBase(cfg StepConfig, req Requirements) (*Base, error) {
	supplied := make([]string, 0, len(cfg.Params))
	for k := range cfg.Params {
		supplied = append(supplied, k)
	}
	sort.Strings(supplied)

	for _, p := range req.Params {
		if v, ok := cfg.Params[p]; !ok || v == nil {
			return nil, ErrMissingParams(append([]string(nil), req.Params...), supplied)
		}
	}

	name := cfg.Name
	if name == "" {
		name = cfg.Type
	}

	params := cfg.Params
	if params == nil {
		params = map[string]any{}
	}
	bindings := make(map[string]string, len(cfg.Context))
	for alias, id := range cfg.Context {
		bindings[alias] = id
	}

	return &Base{
		info:      StepInfo{Type: cfg.Type, Name: name, ID: cfg.ID},
		params:    params,
		bindings:  bindings,
		required:  append([]string(nil), req.Params...),
		endpoints: append([]string(nil), req.Endpoints...),
		output:    map[string]any{},
	}, nil
}

func (b *Base) Info() StepInfo {
	return b.info
}

func (b *Base) RequiredParams() []string {
	return append([]string(nil), b.required...)
}

func (b *Base) Endpoints() []string {
	return append([]string(nil), b.endpoints...)
}

// RequireEndpoints adds operations that depend on parameter values.
func (b *Base) RequireEndpoints(names ...string) {
	b.endpoints = append(b.endpoints, names...)
}

// BindSession stores the session after checking that every declared
// endpoint is available to it.
func (b *Base) BindSession(session Session) error {
	for _, op := range b.endpoints {
		if session == nil || !session.HasOperation(op) {
			return ErrCapability(op)
		}
	}
	b.session = session
	return nil
}

// Session returns the bound session, nil until BindSession succeeded.
func (b *Base) Session() Session {
	return b.session
}

// ResolveContext builds the step-local view of the shared context.
func (b *Base) ResolveContext(shared *Context) error {
	aliases := make([]string, 0, len(b.bindings))
	for alias := range b.bindings {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	view := make(ContextView, len(aliases))
	for _, alias := range aliases {
		id := b.bindings[alias]
		out, ok := shared.Lookup(id)
		if !ok {
			return ErrContextUnavailable(id)
		}
		view[alias] = DeepCopy(out)
	}
	b.view = view
	return nil
}

// View returns the resolved context view.
func (b *Base) View() ContextView {
	return b.view
}

// ContextValue returns the output bound to alias or a ContextError.
func (b *Base) ContextValue(alias string) (map[string]any, error) {
	out, ok := b.view.Get(alias)
	if !ok {
		return nil, ErrContextUnavailable(alias)
	}
	return out, nil
}

func (b *Base) Setup(ctx context.Context) error {
	return nil
}

func (b *Base) Cleanup(ctx context.Context) error {
	return nil
}

// Expose records a named value in the step output.
func (b *Base) Expose(name string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.output[name] = value
}

// ReplaceOutput swaps the whole output object.
func (b *Base) ReplaceOutput(output map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if output == nil {
		output = map[string]any{}
	}
	b.output = output
}

func (b *Base) Output() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.output
}

// Param helpers

func (b *Base) Param(key string) (any, bool) {
	v, ok := b.params[key]
	return v, ok
}

func (b *Base) Params() map[string]any {
	return b.params
}

func (b *Base) StringParam(key, def string) string {
	v, ok := b.params[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (b *Base) BoolParam(key string, def bool) bool {
	v, ok := b.params[key]
	if !ok || v == nil {
		return def
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			return def
		}
		return parsed
	case int:
		return val != 0
	case float64:
		return val != 0
	default:
		return def
	}
}

func (b *Base) MapParam(key string) map[string]any {
	if m, ok := b.params[key].(map[string]any); ok {
		return m
	}
	return nil
}

func (b *Base) IntParam(key string, def int) int {
	v, ok := b.params[key]
	if !ok || v == nil {
		return def
	}
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case string:
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return def
		}
		return parsed
	default:
		return def
	}
}
