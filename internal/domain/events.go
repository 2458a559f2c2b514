package domain

import (
	"time"
)

type EventType string

const (
	EventScheduled   EventType = "schedule"
	EventStarted     EventType = "start"
	EventDone        EventType = "done"
	EventFailed      EventType = "fail"
	EventAutokilled  EventType = "autokilled"
	EventLostContact EventType = "lost-contact"
)

// TaskEvent is one lifecycle observation for a stored record.
type TaskEvent struct {
	Type      EventType     `json:"type"`
	Record    string        `json:"record"`
	Timestamp time.Time     `json:"timestamp"`
	Runtime   time.Duration `json:"runtime,omitempty"`
	Error     string        `json:"error,omitempty"`
	Output    string        `json:"output,omitempty"`
	Host      string        `json:"host,omitempty"`
}

func NewTaskEvent(eventType EventType, record string) TaskEvent {
	return TaskEvent{
		Type:      eventType,
		Record:    record,
		Timestamp: time.Now(),
	}
}
