// Package core wires the record store, the process pool coordinator,
// the lifecycle log and the optional journal into the executor the
// facade exposes.
package core

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"path/filepath"
	"sync"

	"dario.cat/mergo"

	"github.com/eleven-am/glade/internal/adapters/events"
	"github.com/eleven-am/glade/internal/adapters/graph"
	"github.com/eleven-am/glade/internal/adapters/journal"
	"github.com/eleven-am/glade/internal/adapters/pool"
	"github.com/eleven-am/glade/internal/adapters/session"
	"github.com/eleven-am/glade/internal/adapters/store"
	"github.com/eleven-am/glade/internal/domain"
	"github.com/eleven-am/glade/internal/ports"
)

type Executor struct {
	config      *domain.Config
	logger      *slog.Logger
	store       *store.Store
	events      *events.Manager
	journal     *journal.Journal
	coordinator *pool.Coordinator

	mu     sync.Mutex
	closed bool
}

// NewExecutor merges config over the defaults, opens the store and
// assembles the pool. A nil config uses the defaults as-is; a nil
// Launcher means workers run locally through the configured command.
func NewExecutor(config *domain.Config, launcher ports.LauncherPort) (*Executor, error) {
	if config == nil {
		config = &domain.Config{}
	}
	if err := mergo.Merge(config, *domain.DefaultConfig()); err != nil {
		return nil, domain.Error{
			Type:    domain.ErrorTypeInternal,
			Message: "could not merge configuration defaults: " + err.Error(),
		}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	recordStore, err := store.Open(config.Root, config.Store, logger)
	if err != nil {
		return nil, err
	}

	manager := events.NewManager(logger)
	if config.EventLog != "" {
		if err := manager.OpenLogFile(config.EventLog); err != nil {
			// The lifecycle log is observability, never fatal.
			logger.Warn("event log unavailable", "path", config.EventLog, "error", err)
		}
	}

	var eventJournal *journal.Journal
	if config.Journal.Enabled {
		dir := config.Journal.Dir
		if dir == "" {
			dir = filepath.Join(config.Root, "journal")
		}
		eventJournal, err = journal.Open(dir, logger)
		if err != nil {
			recordStore.Close()
			return nil, err
		}
		manager.AddSink(eventJournal)
	}

	if launcher == nil {
		launcher, err = pool.NewLocalLauncher(config.Worker.Command, logger)
		if err != nil {
			closeAll(recordStore, manager, eventJournal)
			return nil, err
		}
	}

	coordinator, err := pool.New(recordStore, launcher, manager, config.Pool, logger)
	if err != nil {
		closeAll(recordStore, manager, eventJournal)
		return nil, err
	}

	return &Executor{
		config:      config,
		logger:      logger.With("component", "executor"),
		store:       recordStore,
		events:      manager,
		journal:     eventJournal,
		coordinator: coordinator,
	}, nil
}

// Schedule persists a deferred computation for a later Run. task is
// either a *domain.TaskNode built with the graph package, the name of
// a registered operation (applied to args), or a plain value wrapped
// as a literal node. Returns the record's storage name; empty when the
// store is read-only.
func (e *Executor) Schedule(task interface{}, args ...interface{}) (string, error) {
	return e.ScheduleWithMetadata(task, nil, args...)
}

// ScheduleWithMetadata is Schedule with an opaque metadata value
// attached by the scheduler, carried on the record, not the graph.
func (e *Executor) ScheduleWithMetadata(task interface{}, metadata interface{}, args ...interface{}) (string, error) {
	node, ok := task.(*domain.TaskNode)
	if !ok {
		node = graph.Defer(task, args...)
	} else if len(args) > 0 {
		return "", domain.NewValidationError("arguments belong in Defer, not Schedule, when scheduling a node", nil)
	}

	name, err := e.store.Schedule(&domain.TaskRecord{Root: node}, metadata)
	if err != nil {
		return "", err
	}
	if name != "" {
		e.events.Emit(domain.NewTaskEvent(domain.EventScheduled, name))
	}
	return name, nil
}

// Run executes every record pending at call time and returns a lazy
// sequence of reconciled records in completion order. Failed tasks
// appear in the sequence with a non-nil Error; Run itself errors only
// on store or configuration problems. When session values are
// configured, the snapshot is captured once here and overwritten on
// the next Run.
func (e *Executor) Run(ctx context.Context) (iter.Seq[*domain.TaskRecord], error) {
	sessionPath := ""
	if len(e.config.Session) > 0 {
		sessionPath = e.store.SessionPath()
		if err := session.Capture(e.config.Session).Write(sessionPath); err != nil {
			return nil, err
		}
	}
	return e.coordinator.Run(ctx, sessionPath)
}

// RunAll is Run drained to completion.
func (e *Executor) RunAll(ctx context.Context) ([]*domain.TaskRecord, error) {
	seq, err := e.Run(ctx)
	if err != nil {
		return nil, err
	}
	var records []*domain.TaskRecord
	for record := range seq {
		records = append(records, record)
	}
	return records, nil
}

func (e *Executor) Pending() iter.Seq2[*domain.TaskRecord, error] {
	return e.store.Pending()
}

func (e *Executor) Succeeded() iter.Seq2[*domain.TaskRecord, error] {
	return e.store.Succeeded()
}

func (e *Executor) Failed() iter.Seq2[*domain.TaskRecord, error] {
	return e.store.Failed()
}

// History returns the journaled lifecycle events for one record, or an
// error when the journal is not enabled.
func (e *Executor) History(name string) ([]domain.TaskEvent, error) {
	if e.journal == nil {
		return nil, fmt.Errorf("%w: journal is not enabled", domain.ErrNotFound)
	}
	return e.journal.ListByRecord(name)
}

// Purge deletes the named partitions, or the whole store when called
// with none.
func (e *Executor) Purge(partitions ...domain.Partition) error {
	return e.store.Purge(partitions...)
}

func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var firstErr error
	if err := e.store.Close(); err != nil {
		firstErr = err
	}
	if e.journal != nil {
		if err := e.journal.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := e.events.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func closeAll(recordStore *store.Store, manager *events.Manager, eventJournal *journal.Journal) {
	recordStore.Close()
	manager.Close()
	if eventJournal != nil {
		eventJournal.Close()
	}
}
