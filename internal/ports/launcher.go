package ports

import (
	"context"
)

// StartSpec describes one worker invocation: the record's file pair,
// an optional session snapshot, and error-printing behavior.
type StartSpec struct {
	RecordName  string
	InputPath   string
	OutputPath  string
	SessionPath string
	PrintErrors bool
	RaiseErrors bool
}

// WorkerProcess is one in-flight worker. Poll must never block, so
// heterogeneous handles (local processes, remote commands) can be
// checked uniformly from a single coordinating loop.
type WorkerProcess interface {
	// Poll reports whether the process has exited and, if so, its
	// exit code.
	Poll() (exited bool, exitCode int)

	// Drain returns the worker's captured output once its stream is
	// fully read, or ctx.Err() if reading outlives ctx.
	Drain(ctx context.Context) (string, error)

	// Kill forcibly terminates the worker's entire process group.
	Kill() error
}

// LauncherPort starts worker processes. The remote execution
// extension point is an alternative implementation keyed by host.
type LauncherPort interface {
	Start(ctx context.Context, spec StartSpec) (WorkerProcess, error)
}
