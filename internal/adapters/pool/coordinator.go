// Package pool runs pending records across a bounded set of worker
// processes. One coordinating goroutine owns all shared state and
// cooperates through periodic polling rather than blocking waits, so
// local and remote worker handles are checked uniformly.
package pool

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/eleven-am/glade/internal/domain"
	"github.com/eleven-am/glade/internal/ports"
)

// Emitter receives lifecycle events; emitting never fails the run.
type Emitter interface {
	Emit(event domain.TaskEvent)
}

type Coordinator struct {
	store    ports.RecordStorePort
	launcher ports.LauncherPort
	emitter  Emitter
	config   domain.PoolConfig
	logger   *slog.Logger
	host     string

	running atomic.Bool
}

func New(store ports.RecordStorePort, launcher ports.LauncherPort, emitter Emitter, config domain.PoolConfig, logger *slog.Logger) (*Coordinator, error) {
	if store == nil || launcher == nil {
		return nil, domain.NewValidationError("coordinator needs a store and a launcher", nil)
	}
	if config.Concurrency < 1 {
		return nil, domain.NewValidationError("concurrency must be at least 1", map[string]interface{}{
			"concurrency": config.Concurrency,
		})
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 100 * time.Millisecond
	}
	if config.LostContactGrace <= 0 {
		config.LostContactGrace = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	host := ""
	if remote, ok := launcher.(*RemoteLauncher); ok {
		host = remote.Host()
	}

	return &Coordinator{
		store:    store,
		launcher: launcher,
		emitter:  emitter,
		config:   config,
		logger:   logger.With("component", "coordinator"),
		host:     host,
	}, nil
}

// handle is one in-flight worker; it exists only between start and
// reconciliation, never persisted.
type handle struct {
	name    string
	proc    ports.WorkerProcess
	started time.Time
}

// Run drains the records pending at call time and yields each one as
// soon as it is reconciled, in completion order. Records scheduled
// mid-run are left for the next Run. Task failures never surface as
// errors here; they come back as records with a non-nil Error. The
// sequence does not end while any worker it started is unaccounted
// for: even when the consumer stops early or ctx is canceled, the
// remaining workers are reconciled (killed first, on cancellation)
// before Run lets go.
func (c *Coordinator) Run(ctx context.Context, sessionPath string) (iter.Seq[*domain.TaskRecord], error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, domain.ErrAlreadyRunning
	}

	names, err := c.store.PendingNames()
	if err != nil {
		c.running.Store(false)
		return nil, err
	}

	seq := func(yield func(*domain.TaskRecord) bool) {
		defer c.running.Store(false)

		active := make(map[string]*handle)
		consuming := true

		deliver := func(records []*domain.TaskRecord) {
			for _, record := range records {
				if consuming && !yield(record) {
					consuming = false
				}
			}
		}

		for _, name := range names {
			if ctx.Err() != nil {
				break
			}
			for len(active) >= c.config.Concurrency && ctx.Err() == nil {
				completed := c.poll(active)
				deliver(completed)
				if len(active) >= c.config.Concurrency {
					c.sleep(ctx)
				}
			}
			if ctx.Err() != nil {
				break
			}
			deliver(c.startWorker(ctx, name, sessionPath, active))
		}

		for len(active) > 0 && ctx.Err() == nil {
			completed := c.poll(active)
			deliver(completed)
			if len(active) > 0 {
				c.sleep(ctx)
			}
		}

		if ctx.Err() != nil {
			deliver(c.cancelAll(active))
		}
	}
	return seq, nil
}

// startWorker launches one record's worker. A launch failure is a
// synthesized record failure, not a run failure.
func (c *Coordinator) startWorker(ctx context.Context, name, sessionPath string, active map[string]*handle) []*domain.TaskRecord {
	spec := ports.StartSpec{
		RecordName:  name,
		InputPath:   c.store.PendingPath(name),
		OutputPath:  c.store.OutputPath(name),
		SessionPath: sessionPath,
		PrintErrors: c.config.PrintErrors,
		RaiseErrors: c.config.RaiseOnError,
	}

	proc, err := c.launcher.Start(ctx, spec)
	if err != nil {
		c.logger.Warn("worker launch failed", "record", name, "error", err)
		record := c.reconcile(name, domain.OutcomeFailed, &domain.TaskError{
			Kind:    domain.TaskErrCrash,
			Message: "worker could not be started: " + err.Error(),
		})
		c.emitFor(record, 0, "")
		return []*domain.TaskRecord{record}
	}

	active[name] = &handle{name: name, proc: proc, started: time.Now()}
	c.emit(domain.EventStarted, name, "")
	return nil
}

// poll makes one non-blocking pass over the active set, reclaiming
// every worker whose state changed.
func (c *Coordinator) poll(active map[string]*handle) []*domain.TaskRecord {
	var completed []*domain.TaskRecord

	for name, h := range active {
		exited, exitCode := h.proc.Poll()

		if !exited {
			if c.config.Timeout > 0 && time.Since(h.started) > c.config.Timeout {
				completed = append(completed, c.autokill(h))
				delete(active, name)
			}
			continue
		}

		completed = append(completed, c.finish(h, exitCode))
		delete(active, name)
	}

	return completed
}

// finish reconciles one exited worker: drain its output under the
// lost-contact grace period, classify by exit status, move the record.
func (c *Coordinator) finish(h *handle, exitCode int) *domain.TaskRecord {
	drainCtx, cancel := context.WithTimeout(context.Background(), c.config.LostContactGrace)
	output, err := h.proc.Drain(drainCtx)
	cancel()

	if err != nil {
		// Exited, but something still holds the output stream open.
		// Kill whatever is left of the group and fail the record
		// deterministically rather than blocking the run.
		if killErr := h.proc.Kill(); killErr != nil {
			c.logger.Warn("could not kill lost worker group", "record", h.name, "error", killErr)
		}
		c.emit(domain.EventLostContact, h.name, "")
		return c.reconcile(h.name, domain.OutcomeFailed, &domain.TaskError{
			Kind:    domain.TaskErrLostContact,
			Message: fmt.Sprintf("worker output not drained within %s", c.config.LostContactGrace),
		})
	}

	outcome := domain.OutcomeSucceeded
	var synth *domain.TaskError
	if exitCode != 0 {
		outcome = domain.OutcomeFailed
		synth = &domain.TaskError{
			Kind:    domain.TaskErrCrash,
			Message: fmt.Sprintf("worker exited with status %d without a captured error", exitCode),
		}
	}

	record := c.reconcile(h.name, outcome, synth)
	c.emitFor(record, record.Runtime, output)
	return record
}

// autokill reclaims a worker that exceeded the configured budget. The
// whole process group goes down so no descendant survives; partially
// written intermediate files may leak, accepted as a last resort.
func (c *Coordinator) autokill(h *handle) *domain.TaskRecord {
	if err := h.proc.Kill(); err != nil {
		c.logger.Warn("autokill failed", "record", h.name, "error", err)
	}
	c.emit(domain.EventAutokilled, h.name, "")
	return c.reconcile(h.name, domain.OutcomeFailed, &domain.TaskError{
		Kind:    domain.TaskErrTimeout,
		Message: fmt.Sprintf("worker exceeded the %s autokill budget", c.config.Timeout),
	})
}

// cancelAll reclaims every remaining worker after context
// cancellation, so the run never returns with one unaccounted for.
func (c *Coordinator) cancelAll(active map[string]*handle) []*domain.TaskRecord {
	var completed []*domain.TaskRecord
	for name, h := range active {
		if err := h.proc.Kill(); err != nil {
			c.logger.Warn("could not kill worker on cancellation", "record", name, "error", err)
		}
		c.emit(domain.EventAutokilled, name, "")
		completed = append(completed, c.reconcile(name, domain.OutcomeFailed, &domain.TaskError{
			Kind:    domain.TaskErrTimeout,
			Message: "run canceled before the worker finished",
		}))
		delete(active, name)
	}
	return completed
}

// reconcile moves the record and never loses it: a store failure still
// produces a synthesized record so the caller sees every scheduled
// unit exactly once.
func (c *Coordinator) reconcile(name string, outcome domain.Outcome, synth *domain.TaskError) *domain.TaskRecord {
	record, err := c.store.Reconcile(name, outcome, synth)
	if err != nil {
		c.logger.Error("reconcile failed", "record", name, "error", err)
		record = &domain.TaskRecord{
			Name: name,
			Error: &domain.TaskError{
				Kind:    domain.TaskErrUnknown,
				Message: "reconcile failed: " + err.Error(),
			},
		}
	}
	return record
}

func (c *Coordinator) emitFor(record *domain.TaskRecord, runtime time.Duration, output string) {
	eventType := domain.EventDone
	errText := ""
	if record.Error != nil {
		eventType = domain.EventFailed
		errText = record.Error.Error()
	}

	event := domain.NewTaskEvent(eventType, record.Name)
	event.Runtime = runtime
	event.Error = errText
	event.Output = output
	event.Host = c.host
	if c.emitter != nil {
		c.emitter.Emit(event)
	}
}

func (c *Coordinator) emit(eventType domain.EventType, name, errText string) {
	if c.emitter == nil {
		return
	}
	event := domain.NewTaskEvent(eventType, name)
	event.Error = errText
	event.Host = c.host
	c.emitter.Emit(event)
}

func (c *Coordinator) sleep(ctx context.Context) {
	timer := time.NewTimer(c.config.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
