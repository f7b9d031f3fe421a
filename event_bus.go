package autopilot

import (
	"sync"
	"time"

	"github.com/simon020286/go-autopilot/models"
)

// eventBus delivers events to registered listeners (private).
// Delivery is synchronous so listeners observe events in run order.
type eventBus struct {
	runID     string
	listeners []models.EventListener
	mutex     sync.RWMutex
}

func newEventBus(runID string) *eventBus {
	return &eventBus{
		runID:     runID,
		listeners: make([]models.EventListener, 0),
	}
}

func (eb *eventBus) addListener(listener models.EventListener) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	eb.listeners = append(eb.listeners, listener)
}

// Emit sends an event to all registered listeners
func (eb *eventBus) Emit(eventType models.EventType, data map[string]any) {
	eb.mutex.RLock()
	listeners := make([]models.EventListener, len(eb.listeners))
	copy(listeners, eb.listeners)
	eb.mutex.RUnlock()

	event := models.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		RunID:     eb.runID,
		Data:      data,
	}
	for _, l := range listeners {
		l.OnEvent(event)
	}
}

func (eb *eventBus) EmitWorkflowStarted(steps int) {
	eb.Emit(models.EventWorkflowStarted, map[string]any{
		"steps": steps,
	})
}

func (eb *eventBus) EmitWorkflowCompleted(duration time.Duration) {
	eb.Emit(models.EventWorkflowCompleted, map[string]any{
		"duration": duration,
	})
}

func (eb *eventBus) EmitWorkflowError(err error) {
	eb.Emit(models.EventWorkflowError, map[string]any{
		"error": err.Error(),
		"kind":  models.ErrorKind(err),
	})
}

func (eb *eventBus) EmitSessionConnected(user models.Identity, operations int) {
	eb.Emit(models.EventSessionConnected, map[string]any{
		"user":       user.Username,
		"operations": operations,
	})
}

func stepData(index int, info models.StepInfo) map[string]any {
	return map[string]any{
		"index": index + 1,
		"type":  info.Type,
		"name":  info.Name,
		"id":    info.ID,
	}
}

func (eb *eventBus) EmitStepStarted(index int, info models.StepInfo) {
	eb.Emit(models.EventStepStarted, stepData(index, info))
}

func (eb *eventBus) EmitStepOutput(index int, info models.StepInfo, output map[string]any) {
	data := stepData(index, info)
	data["output"] = output
	eb.Emit(models.EventStepOutput, data)
}

func (eb *eventBus) EmitStepCompleted(index int, info models.StepInfo, duration time.Duration) {
	data := stepData(index, info)
	data["duration"] = duration
	eb.Emit(models.EventStepCompleted, data)
}

func (eb *eventBus) EmitStepError(index int, info models.StepInfo, err error) {
	data := stepData(index, info)
	data["error"] = err.Error()
	data["kind"] = models.ErrorKind(err)
	eb.Emit(models.EventStepError, data)
}
