package models

import (
	"time"
)

// EventType is the kind of event emitted while a workflow runs
type EventType string

const (
	// Workflow events
	EventWorkflowStarted   EventType = "workflow.started"
	EventWorkflowCompleted EventType = "workflow.completed"
	EventWorkflowError     EventType = "workflow.error"

	// Session events
	EventSessionConnected EventType = "session.connected"

	// Step events
	EventStepStarted   EventType = "step.started"
	EventStepOutput    EventType = "step.output"
	EventStepCompleted EventType = "step.completed"
	EventStepError     EventType = "step.error"
)

// Event is a generic workflow event
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Data      map[string]any `json:"data"`
}

// EventListener receives workflow events. Delivery is synchronous and in
// emission order, so listeners should return quickly.
type EventListener interface {
	OnEvent(event Event)
}

// EventListenerFunc adapts a function to EventListener
type EventListenerFunc func(event Event)

func (f EventListenerFunc) OnEvent(event Event) {
	f(event)
}
