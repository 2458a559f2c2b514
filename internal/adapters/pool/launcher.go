package pool

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/eleven-am/glade/internal/domain"
	"github.com/eleven-am/glade/internal/ports"
)

// LocalLauncher starts worker processes on this machine. Each worker
// runs in its own process group so that autokill can take down any
// descendants the operation may have spawned.
type LocalLauncher struct {
	command []string
	logger  *slog.Logger
}

func NewLocalLauncher(command []string, logger *slog.Logger) (*LocalLauncher, error) {
	if len(command) == 0 {
		return nil, domain.NewValidationError("worker command is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalLauncher{
		command: command,
		logger:  logger.With("component", "local-launcher"),
	}, nil
}

func (l *LocalLauncher) Start(ctx context.Context, spec ports.StartSpec) (ports.WorkerProcess, error) {
	argv := workerArgv(l.command, spec)
	return startProcess(argv, l.logger)
}

// workerArgv appends the record file pair and flags to the configured
// command prefix.
func workerArgv(command []string, spec ports.StartSpec) []string {
	argv := make([]string, 0, len(command)+6)
	argv = append(argv, command...)
	argv = append(argv, "-in", spec.InputPath, "-out", spec.OutputPath)
	if spec.SessionPath != "" {
		argv = append(argv, "-session", spec.SessionPath)
	}
	if spec.PrintErrors {
		argv = append(argv, "-print")
	}
	if spec.RaiseErrors {
		argv = append(argv, "-raise")
	}
	return argv
}

// osProcess tracks one spawned worker. Exit detection is decoupled
// from output draining: the wait goroutine watches the process itself,
// while a separate goroutine copies the output pipe. A worker can
// therefore be observed as exited even when a leaked descendant still
// holds the output stream open, which is exactly the lost-contact
// case the coordinator has to handle.
type osProcess struct {
	cmd *exec.Cmd

	done     chan struct{}
	exitCode int

	drained chan struct{}
	output  bytes.Buffer

	killOnce sync.Once
	killErr  error
}

func startProcess(argv []string, logger *slog.Logger) (*osProcess, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	readEnd, writeEnd, err := os.Pipe()
	if err != nil {
		return nil, domain.Error{
			Type:    domain.ErrorTypeInternal,
			Message: "could not create worker output pipe: " + err.Error(),
		}
	}
	cmd.Stdout = writeEnd
	cmd.Stderr = writeEnd

	if err := cmd.Start(); err != nil {
		readEnd.Close()
		writeEnd.Close()
		return nil, domain.Error{
			Type:    domain.ErrorTypeInternal,
			Message: "could not start worker: " + err.Error(),
			Details: map[string]interface{}{"command": argv[0]},
		}
	}
	writeEnd.Close()

	p := &osProcess{
		cmd:     cmd,
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}

	go func() {
		defer close(p.drained)
		if _, err := io.Copy(&p.output, readEnd); err != nil {
			logger.Debug("worker output copy ended", "error", err)
		}
		readEnd.Close()
	}()

	go func() {
		defer close(p.done)
		state, err := cmd.Process.Wait()
		if err != nil {
			logger.Warn("wait on worker failed", "pid", cmd.Process.Pid, "error", err)
			p.exitCode = -1
			return
		}
		p.exitCode = state.ExitCode()
	}()

	return p, nil
}

func (p *osProcess) Poll() (bool, int) {
	select {
	case <-p.done:
		return true, p.exitCode
	default:
		return false, 0
	}
}

func (p *osProcess) Drain(ctx context.Context) (string, error) {
	select {
	case <-p.drained:
		return p.output.String(), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Kill terminates the worker's whole process group. Setpgid at start
// makes the group id equal the worker's pid.
func (p *osProcess) Kill() error {
	p.killOnce.Do(func() {
		p.killErr = syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL)
	})
	return p.killErr
}
