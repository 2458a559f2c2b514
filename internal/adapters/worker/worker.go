// Package worker is the body of one worker process: load a pending
// record, evaluate its graph, write the outcome back, exit with a
// status the coordinator can classify. It owns exactly one record's
// file pair and writes its result fields once.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/eleven-am/glade/internal/adapters/eval"
	"github.com/eleven-am/glade/internal/adapters/graph"
	"github.com/eleven-am/glade/internal/adapters/session"
	"github.com/eleven-am/glade/internal/adapters/store"
	"github.com/eleven-am/glade/internal/domain"
	"github.com/eleven-am/glade/internal/xjson"
)

const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitCorrupt = 2
)

type Config struct {
	InputPath   string
	OutputPath  string
	SessionPath string
	PrintErrors bool
	RaiseErrors bool

	// Registry defaults to the process-wide operation registry.
	Registry eval.Resolver
	Logger   *slog.Logger
}

// Run executes one record and returns the process exit code. The
// outcome record is written to OutputPath in every case except a
// corrupt or unreadable input; a captured evaluation error is a normal
// outcome, reported through the record and a nonzero exit, never a
// crash. When RaiseErrors is set the captured error is also returned.
func Run(ctx context.Context, cfg Config) (int, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "worker")

	resolver := cfg.Registry
	if resolver == nil {
		resolver = graph.Default()
	}

	record, err := readRecord(cfg.InputPath)
	if err != nil {
		logger.Error("could not load record", "path", cfg.InputPath, "error", err)
		return ExitCorrupt, err
	}

	var sessionValues map[string]interface{}
	if cfg.SessionPath != "" {
		bundle, err := session.Load(cfg.SessionPath)
		if err != nil {
			logger.Warn("could not load session snapshot", "path", cfg.SessionPath, "error", err)
		} else if bundle != nil {
			sessionValues = bundle.Values
		}
	}

	started := time.Now()
	value, evalErr := evaluate(ctx, resolver, sessionValues, record.Root)
	record.Runtime = time.Since(started)

	if evalErr == nil {
		record.Value = value
		record.Error = nil
	} else {
		record.Value = nil
		record.Error = asTaskError(evalErr)
	}

	if err := writeRecord(cfg.OutputPath, record); err != nil {
		logger.Error("could not write outcome", "path", cfg.OutputPath, "error", err)
		return ExitCorrupt, err
	}

	if evalErr != nil {
		if cfg.PrintErrors {
			fmt.Fprintln(os.Stderr, evalErr)
		}
		if cfg.RaiseErrors {
			return ExitFailure, evalErr
		}
		return ExitFailure, nil
	}
	return ExitSuccess, nil
}

// evaluate runs the evaluator with panic containment: a panicking
// operation becomes a captured error, the worker still writes its
// outcome and exits cleanly with a failure status.
func evaluate(ctx context.Context, resolver eval.Resolver, sessionValues map[string]interface{}, root *domain.TaskNode) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return eval.New(resolver, sessionValues).Evaluate(ctx, root)
}

func asTaskError(err error) *domain.TaskError {
	if taskErr, ok := err.(*domain.TaskError); ok {
		return taskErr
	}
	return &domain.TaskError{
		Kind:    domain.TaskErrEvaluation,
		Message: err.Error(),
	}
}

func readRecord(path string) (*domain.TaskRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var record domain.TaskRecord
	if err := xjson.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func writeRecord(path string, record *domain.TaskRecord) error {
	data, err := xjson.Marshal(record)
	if err != nil {
		return err
	}
	return store.WriteAtomic(path, data)
}
