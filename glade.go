// Package glade describes graphs of deferred computations, persists
// them as records, and executes them across a bounded pool of worker
// processes without losing work on crashes.
//
// A caller builds a graph with Defer (and Attr/Index projections over
// eventual values), schedules it on an Executor, and runs the pending
// records:
//
//	glade.Register("add", func(ctx context.Context, call glade.Call) (any, error) {
//	    return call.Args[0].(float64) + call.Args[1].(float64), nil
//	})
//
//	exec, _ := glade.New(glade.NewConfigBuilder("./glade-data").Build())
//	exec.Schedule(glade.Defer("add", 1, 2))
//
//	records, _ := exec.RunAll(context.Background())
//
// Each record runs in its own worker process; results and captured
// failures land in the succeeded and failed partitions of the store.
// Operations are referenced by registered name so a record written by
// one process can be evaluated by another.
package glade

import (
	"github.com/eleven-am/glade/internal/adapters/graph"
	"github.com/eleven-am/glade/internal/adapters/pool"
	"github.com/eleven-am/glade/internal/core"
	"github.com/eleven-am/glade/internal/domain"
	"github.com/eleven-am/glade/internal/ports"
)

// TaskNode is one deferred computation: an application of a registered
// operation, or a projection over another node's eventual value.
type TaskNode = domain.TaskNode

// TaskRecord is the schedulable unit: a graph root plus metadata,
// runtime and terminal outcome.
type TaskRecord = domain.TaskRecord

// TaskError is a failure captured across the worker boundary.
type TaskError = domain.TaskError

// TaskEvent is one lifecycle log entry.
type TaskEvent = domain.TaskEvent

// Call carries the resolved inputs of one operation invocation.
type Call = domain.Call

// OpFunc is a registered operation.
type OpFunc = domain.OpFunc

type Outcome = domain.Outcome

type Partition = domain.Partition

const (
	PartitionPending   = domain.PartitionPending
	PartitionSucceeded = domain.PartitionSucceeded
	PartitionFailed    = domain.PartitionFailed
)

// Executor owns one record store and its process pool.
type Executor = core.Executor

// Launcher is the worker-start extension point; remote execution plugs
// in here.
type Launcher = ports.LauncherPort

// New builds an Executor running workers locally through the
// configured worker command.
func New(config *Config) (*Executor, error) {
	return core.NewExecutor(config, nil)
}

// NewWithLauncher builds an Executor that starts workers through a
// custom launcher, for example a RemoteLauncher.
func NewWithLauncher(config *Config, launcher Launcher) (*Executor, error) {
	return core.NewExecutor(config, launcher)
}

// NewRemoteLauncher starts workers on host through a remote shell such
// as ssh; the store root must be shared between both machines.
func NewRemoteLauncher(shell []string, host string, command []string, concurrency int) (*pool.RemoteLauncher, error) {
	return pool.NewRemoteLauncher(shell, host, command, concurrency, nil)
}

// Defer wraps an operation reference (a registered name) or a plain
// value for later execution; building never runs user code.
func Defer(op interface{}, args ...interface{}) *TaskNode {
	return graph.Defer(op, args...)
}

// DeferKw is Defer with keyword arguments.
func DeferKw(op interface{}, args []interface{}, kwargs map[string]interface{}) *TaskNode {
	return graph.DeferKw(op, args, kwargs)
}

// Attr defers an attribute access on node's eventual value.
func Attr(node *TaskNode, name string) *TaskNode {
	return graph.Attr(node, name)
}

// Index defers an index or key access on node's eventual value.
func Index(node *TaskNode, key interface{}) *TaskNode {
	return graph.Index(node, key)
}

// Equal reports structural equality between nodes.
func Equal(a, b *TaskNode) bool {
	return domain.Equal(a, b)
}

// Register adds an operation to the process-wide registry under name.
// Scheduler and worker processes must register the same names.
func Register(name string, fn OpFunc) {
	graph.Register(name, fn)
}
