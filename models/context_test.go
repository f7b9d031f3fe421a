package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_PublishOnce(t *testing.T) {
	c := NewContext()
	require.NoError(t, c.Publish("course", map[string]any{"id": 7}))

	err := c.Publish("course", map[string]any{"id": 8})
	var ce *ContextError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "course", ce.ID)

	out, ok := c.Lookup("course")
	require.True(t, ok)
	assert.Equal(t, 7, out["id"])
}

func TestContext_KeysInOrder(t *testing.T) {
	c := NewContext()
	require.NoError(t, c.Publish("b", nil))
	require.NoError(t, c.Publish("a", nil))
	assert.Equal(t, []string{"b", "a"}, c.Keys())
	assert.Equal(t, 2, c.Len())
}

func TestContext_SnapshotIsDeep(t *testing.T) {
	c := NewContext()
	require.NoError(t, c.Publish("s", map[string]any{
		"list": []any{map[string]any{"v": "x"}},
	}))

	snap := c.Snapshot()
	inner := snap["s"].(map[string]any)["list"].([]any)[0].(map[string]any)
	inner["v"] = "changed"

	orig, _ := c.Lookup("s")
	assert.Equal(t, "x", orig["list"].([]any)[0].(map[string]any)["v"])
}

func TestErrorKind(t *testing.T) {
	wrapped := WrapStepError(2, StepInfo{Type: "Course", Name: "Course"}, ErrCapability("x"))
	assert.Equal(t, "capability", ErrorKind(wrapped))
	assert.Equal(t, "internal", ErrorKind(errors.New("boom")))
	assert.Contains(t, wrapped.Error(), "step 3 (Course)")
}
