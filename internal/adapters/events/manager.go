// Package events is the lifecycle log: one structured line per
// schedule/start/done/fail/autokilled/lost-contact observation, fanned
// out to optional sinks (append-only file, durable journal). Emitting
// is always best effort; a sink failure never affects scheduling or
// execution.
package events

import (
	"log/slog"
	"os"
	"sync"

	"github.com/eleven-am/glade/internal/domain"
	"github.com/eleven-am/glade/internal/ports"
	"github.com/eleven-am/glade/internal/xjson"
)

type Manager struct {
	logger *slog.Logger

	mu    sync.Mutex
	sinks []ports.EventSink
	file  *os.File
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger.With("component", "lifecycle"),
	}
}

func (m *Manager) AddSink(sink ports.EventSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, sink)
}

// OpenLogFile attaches an append-only event log at path.
func (m *Manager) OpenLogFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return domain.NewStorageError("event log open", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.file = file
	return nil
}

// Emit logs the event and forwards it to every sink.
func (m *Manager) Emit(event domain.TaskEvent) {
	attrs := []interface{}{
		"event", string(event.Type),
		"record", event.Record,
	}
	if event.Runtime > 0 {
		attrs = append(attrs, "runtime", event.Runtime.String())
	}
	if event.Error != "" {
		attrs = append(attrs, "error", event.Error)
	}
	if event.Host != "" {
		attrs = append(attrs, "host", event.Host)
	}

	switch event.Type {
	case domain.EventFailed, domain.EventAutokilled, domain.EventLostContact:
		m.logger.Warn("task lifecycle", attrs...)
	default:
		m.logger.Info("task lifecycle", attrs...)
	}

	m.mu.Lock()
	sinks := make([]ports.EventSink, len(m.sinks))
	copy(sinks, m.sinks)
	file := m.file
	m.mu.Unlock()

	if file != nil {
		if line, err := xjson.Marshal(event); err == nil {
			if _, err := file.Write(append(line, '\n')); err != nil {
				m.logger.Warn("event log write failed", "error", err)
			}
		}
	}
	for _, sink := range sinks {
		if err := sink.Emit(event); err != nil {
			m.logger.Warn("event sink rejected event", "event", string(event.Type), "error", err)
		}
	}
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file != nil {
		err := m.file.Close()
		m.file = nil
		return err
	}
	return nil
}
