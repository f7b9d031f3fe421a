package logging

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/simon020286/go-autopilot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"json", "human"} {
		l, err := New(Config{Format: format})
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
}

func TestNew_DebugAndFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "run.log")
	l, err := New(Config{Debug: true, Format: "json", File: file})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.FileExists(t, file)
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	l := zap.NewExample()
	ctx := WithLogger(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}

func TestErrorFields(t *testing.T) {
	err := models.WrapStepError(1, models.StepInfo{Type: "Course", ID: "course"},
		&models.DomainError{Operation: "core_course_get_contents", Code: "invalidrecord", Message: "x"})

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range ErrorFields(err) {
		f.AddTo(enc)
	}
	assert.Equal(t, "domain", enc.Fields["kind"])
	assert.Equal(t, int64(2), enc.Fields["step"])
	assert.Equal(t, "course", enc.Fields["step_id"])
	assert.Equal(t, "invalidrecord", enc.Fields["code"])
	assert.Nil(t, ErrorFields(nil))
}

func TestEventLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewEventLogger(zap.New(core), true)

	l.OnEvent(models.Event{Type: models.EventStepStarted, RunID: "r1", Data: map[string]any{"index": 1, "type": "Log", "id": "log"}})
	l.OnEvent(models.Event{Type: models.EventStepOutput, RunID: "r1", Data: map[string]any{"index": 1, "type": "Log", "output": map[string]any{}}})
	l.OnEvent(models.Event{Type: models.EventStepCompleted, RunID: "r1", Data: map[string]any{"index": 1, "type": "Log", "duration": time.Second}})
	l.OnEvent(models.Event{Type: models.EventWorkflowError, RunID: "r1", Data: map[string]any{"error": "boom"}})

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "run step", entries[0].Message)
	assert.Equal(t, "step output", entries[1].Message)
	assert.Equal(t, "step completed", entries[2].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "r1", entries[0].ContextMap()["run_id"])
}
