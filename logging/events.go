package logging

import (
	"time"

	"github.com/simon020286/go-autopilot/models"
	"go.uber.org/zap"
)

// EventLogger logs workflow events
type EventLogger struct {
	logger  *zap.Logger
	verbose bool
}

// NewEventLogger returns a listener writing to logger. With verbose set,
// step outputs are logged at debug level.
func NewEventLogger(logger *zap.Logger, verbose bool) *EventLogger {
	return &EventLogger{logger: logger, verbose: verbose}
}

func (l *EventLogger) OnEvent(event models.Event) {
	log := l.logger.With(zap.String("run_id", event.RunID))

	switch event.Type {
	case models.EventWorkflowStarted:
		log.Info("workflow started", zap.Any("steps", event.Data["steps"]))

	case models.EventSessionConnected:
		log.Info("session connected",
			zap.Any("user", event.Data["user"]),
			zap.Any("operations", event.Data["operations"]))

	case models.EventStepStarted:
		log.Info("run step", stepFields(event)...)

	case models.EventStepOutput:
		if l.verbose {
			log.Debug("step output", append(stepFields(event), zap.Any("output", event.Data["output"]))...)
		}

	case models.EventStepCompleted:
		fields := stepFields(event)
		if d, ok := event.Data["duration"].(time.Duration); ok {
			fields = append(fields, zap.Duration("duration", d))
		}
		log.Info("step completed", fields...)

	case models.EventStepError:
		log.Error("step failed", append(stepFields(event), zap.Any("error", event.Data["error"]))...)

	case models.EventWorkflowCompleted:
		log.Info("workflow completed", zap.Any("duration", event.Data["duration"]))

	case models.EventWorkflowError:
		log.Error("workflow failed", zap.Any("error", event.Data["error"]))
	}
}

func stepFields(event models.Event) []zap.Field {
	fields := []zap.Field{
		zap.Any("step", event.Data["index"]),
		zap.Any("type", event.Data["type"]),
	}
	if name, ok := event.Data["name"].(string); ok && name != "" {
		fields = append(fields, zap.String("name", name))
	}
	if id, ok := event.Data["id"].(string); ok && id != "" {
		fields = append(fields, zap.String("id", id))
	}
	return fields
}
