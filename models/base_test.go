package models

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	ops map[string]bool
}

func (f *fakeSession) HasOperation(name string) bool { return f.ops[name] }
func (f *fakeSession) Call(ctx context.Context, op string, params map[string]any) (any, error) {
	return nil, nil
}
func (f *fakeSession) Invoke(ctx context.Context, module, verb, resource string, params map[string]any) (any, error) {
	return nil, nil
}
func (f *fakeSession) Download(ctx context.Context, fileURL string, w io.Writer) error { return nil }
func (f *fakeSession) User() Identity                                                    { return Identity{} }

func TestNewBase_MissingParam(t *testing.T) {
	_, err := NewBase(StepConfig{
		Type:   "Course",
		Params: map[string]any{"status": "past"},
	}, Requirements{Params: []string{"name"}})

	var pe *ParameterError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, []string{"name"}, pe.Wanted)
	assert.Equal(t, []string{"status"}, pe.Got)
	assert.Contains(t, err.Error(), "wanted name, got status")
}

func TestNewBase_NoParamsAtAll(t *testing.T) {
	_, err := NewBase(StepConfig{Type: "Script"}, Requirements{Params: []string{"script"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got nothing")
}

func TestNewBase_NameDefaultsToType(t *testing.T) {
	b, err := NewBase(StepConfig{Type: "Log", ID: "log"}, Requirements{})
	require.NoError(t, err)
	assert.Equal(t, StepInfo{Type: "Log", Name: "Log", ID: "log"}, b.Info())
}

func TestBindSession_MissingEndpoint(t *testing.T) {
	b, err := NewBase(StepConfig{Type: "Course"}, Requirements{
		Endpoints: []string{"core_webservice_get_site_info", "mod_assign_save_grade"},
	})
	require.NoError(t, err)

	err = b.BindSession(&fakeSession{ops: map[string]bool{"core_webservice_get_site_info": true}})
	var ce *CapabilityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "mod_assign_save_grade", ce.Operation)
	assert.Nil(t, b.Session())
}

func TestResolveContext(t *testing.T) {
	shared := NewContext()
	require.NoError(t, shared.Publish("first", map[string]any{"x": 1}))

	b, err := NewBase(StepConfig{Type: "Log", Context: map[string]string{"prev": "first"}}, Requirements{})
	require.NoError(t, err)
	require.NoError(t, b.ResolveContext(shared))

	prev, err := b.ContextValue("prev")
	require.NoError(t, err)
	assert.Equal(t, 1, prev["x"])

	// the view is a copy
	prev["x"] = 2
	stored, _ := shared.Lookup("first")
	assert.Equal(t, 1, stored["x"])
}

func TestResolveContext_Missing(t *testing.T) {
	b, err := NewBase(StepConfig{Type: "Log", Context: map[string]string{"course": "course"}}, Requirements{})
	require.NoError(t, err)

	err = b.ResolveContext(NewContext())
	var ce *ContextError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "course", ce.ID)
}

func TestBoolParam(t *testing.T) {
	b, err := NewBase(StepConfig{Type: "x", Params: map[string]any{
		"a": true, "b": "false", "c": 1, "d": "nope",
	}}, Requirements{})
	require.NoError(t, err)

	assert.True(t, b.BoolParam("a", false))
	assert.False(t, b.BoolParam("b", true))
	assert.True(t, b.BoolParam("c", false))
	assert.True(t, b.BoolParam("d", true))
	assert.False(t, b.BoolParam("missing", false))
}
