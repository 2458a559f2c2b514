package pool

import (
	"context"
	"log/slog"

	"github.com/eleven-am/glade/internal/domain"
	"github.com/eleven-am/glade/internal/ports"
)

// RemoteLauncher starts workers through a remote-command prefix, for
// example an ssh invocation. The record store root must be reachable
// from the remote host under the same paths (a shared filesystem); the
// coordinator's polling and reconciliation are unchanged, it only
// observes the local command that fronts the remote worker.
type RemoteLauncher struct {
	host    string
	command []string
	logger  *slog.Logger

	// Concurrency is the host's own worker budget, for callers that
	// run one coordinator per host.
	Concurrency int
}

// NewRemoteLauncher builds a launcher that runs the worker command on
// host via the given remote shell, e.g. shell = []string{"ssh"}.
func NewRemoteLauncher(shell []string, host string, command []string, concurrency int, logger *slog.Logger) (*RemoteLauncher, error) {
	if host == "" {
		return nil, domain.NewValidationError("remote host is required", nil)
	}
	if len(shell) == 0 || len(command) == 0 {
		return nil, domain.NewValidationError("remote shell and worker command are required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	prefix := make([]string, 0, len(shell)+1+len(command))
	prefix = append(prefix, shell...)
	prefix = append(prefix, host)
	prefix = append(prefix, command...)

	return &RemoteLauncher{
		host:        host,
		command:     prefix,
		logger:      logger.With("component", "remote-launcher", "host", host),
		Concurrency: concurrency,
	}, nil
}

func (l *RemoteLauncher) Host() string {
	return l.host
}

func (l *RemoteLauncher) Start(ctx context.Context, spec ports.StartSpec) (ports.WorkerProcess, error) {
	argv := workerArgv(l.command, spec)
	return startProcess(argv, l.logger)
}
