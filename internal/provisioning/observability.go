package provisioning

import "time"

// Observer receives structured pipeline events (metrics, tests).
type Observer interface {
	Event(event Event)
}

// Event is one structured pipeline event.
type Event struct {
	Type      EventType
	Stage     string
	Message   string
	Component string
	Version   string
	Duration  time.Duration
	Timestamp time.Time
}

// EventType represents the type of pipeline event.
type EventType string

const (
	// EventStageStarted indicates a stage has started.
	EventStageStarted EventType = "stage.started"
	// EventStageCompleted indicates a stage completed successfully.
	EventStageCompleted EventType = "stage.completed"
	// EventStageFailed indicates a stage failed.
	EventStageFailed EventType = "stage.failed"

	// EventComponentDetected indicates a component version was probed.
	EventComponentDetected EventType = "component.detected"
	// EventComponentMissing indicates a probed component is absent.
	EventComponentMissing EventType = "component.missing"

	// EventWarning indicates a non-fatal problem.
	EventWarning EventType = "warning"
)

// Observers fans events out to several observers.
type Observers []Observer

// Event implements Observer.
func (o Observers) Event(event Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Event(event)
		}
	}
}

// RecordingObserver keeps every event (for tests).
type RecordingObserver struct {
	Events []Event
}

// Event implements Observer.
func (r *RecordingObserver) Event(event Event) {
	r.Events = append(r.Events, event)
}

// Types returns the recorded event types in order.
func (r *RecordingObserver) Types() []EventType {
	out := make([]EventType, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}
