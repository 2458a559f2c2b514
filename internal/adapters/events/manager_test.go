package events

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/glade/internal/domain"
)

type capturingSink struct {
	events []domain.TaskEvent
	err    error
}

func (s *capturingSink) Emit(event domain.TaskEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func TestEmitFansOutToSinks(t *testing.T) {
	manager := NewManager(nil)
	sink := &capturingSink{}
	manager.AddSink(sink)

	manager.Emit(domain.NewTaskEvent(domain.EventScheduled, "r1"))
	manager.Emit(domain.NewTaskEvent(domain.EventDone, "r1"))

	require.Len(t, sink.events, 2)
	assert.Equal(t, domain.EventScheduled, sink.events[0].Type)
	assert.Equal(t, "r1", sink.events[0].Record)
}

func TestSinkFailureIsNotFatal(t *testing.T) {
	manager := NewManager(nil)
	broken := &capturingSink{err: errors.New("sink down")}
	healthy := &capturingSink{}
	manager.AddSink(broken)
	manager.AddSink(healthy)

	manager.Emit(domain.NewTaskEvent(domain.EventFailed, "r1"))
	assert.Len(t, healthy.events, 1)
}

func TestAppendOnlyLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	manager := NewManager(nil)
	require.NoError(t, manager.OpenLogFile(path))
	defer manager.Close()

	manager.Emit(domain.NewTaskEvent(domain.EventStarted, "r1"))
	event := domain.NewTaskEvent(domain.EventAutokilled, "r2")
	event.Error = "worker exceeded the 1s autokill budget"
	manager.Emit(event)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"start"`)
	assert.Contains(t, lines[1], `"autokilled"`)
	assert.Contains(t, lines[1], "r2")
}
