package ports

import (
	"github.com/eleven-am/glade/internal/domain"
)

// EventSink receives lifecycle events. Sink failures are never fatal
// to scheduling or execution.
type EventSink interface {
	Emit(event domain.TaskEvent) error
}

// EventJournal is a durable, queryable sink.
type EventJournal interface {
	EventSink
	ListByRecord(name string) ([]domain.TaskEvent, error)
	List(limit int) ([]domain.TaskEvent, error)
	Close() error
}
