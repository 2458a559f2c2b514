package domain

import (
	"context"
	"time"

	"github.com/eleven-am/glade/internal/xjson"
)

type NodeKind string

const (
	KindApplication NodeKind = "application"
	KindProjection  NodeKind = "projection"
)

type AccessorKind string

const (
	AccessAttribute AccessorKind = "attribute"
	AccessIndex     AccessorKind = "index"
)

// Accessor selects a part of a parent node's eventual value.
type Accessor struct {
	Kind AccessorKind `json:"kind"`
	Name string       `json:"name,omitempty"`
	Key  interface{}  `json:"key,omitempty"`
}

// Value is one argument slot of an application node: either a nested
// node or an already-evaluated literal kept in canonical JSON form.
type Value struct {
	Node    *TaskNode        `json:"node,omitempty"`
	Literal xjson.RawMessage `json:"literal,omitempty"`
}

// TaskNode is one deferred computation in a task graph. The Kind field
// is the discriminant; the serialization layer never has to guess the
// shape from anything else.
//
// Application nodes reference a registered operation by name, or carry
// a literal value that evaluates to itself. Projection nodes defer an
// attribute or index access on their parent's eventual value.
//
// ID is the structural identity: equal accessor chains built from
// equal roots produce equal IDs, so the evaluator memoizes them to a
// single slot. Serialization duplicates shared subtrees, but identity
// still collapses them at evaluation time.
type TaskNode struct {
	Kind NodeKind `json:"kind"`
	ID   string   `json:"id"`

	Op        string           `json:"op,omitempty"`
	Literal   xjson.RawMessage `json:"literal,omitempty"`
	IsLiteral bool             `json:"is_literal,omitempty"`
	Args      []Value          `json:"args,omitempty"`
	Kwargs    map[string]Value `json:"kwargs,omitempty"`

	Parent   *TaskNode `json:"parent,omitempty"`
	Accessor *Accessor `json:"accessor,omitempty"`

	buildErr error
}

// BuildErr reports a construction failure captured while the graph was
// being built, typically an argument that cannot be serialized.
// Scheduling a node with a non-nil build error fails; building never
// panics.
func (n *TaskNode) BuildErr() error {
	if n == nil {
		return nil
	}
	return n.buildErr
}

// SetBuildErr records the first construction failure on the node.
func (n *TaskNode) SetBuildErr(err error) {
	if n.buildErr == nil {
		n.buildErr = err
	}
}

// Equal reports structural equality. IDs are derived deterministically
// from the full structure, so identity comparison is sufficient once
// both nodes carry one.
func Equal(a, b *TaskNode) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID != "" && a.ID == b.ID
}

// TaskError is a captured failure, serializable across the worker
// boundary.
type TaskError struct {
	Kind    string `json:"kind"`
	Op      string `json:"op,omitempty"`
	Message string `json:"message"`
}

const (
	TaskErrEvaluation  = "evaluation"
	TaskErrCrash       = "crash"
	TaskErrTimeout     = "timeout"
	TaskErrLostContact = "lost_contact"
	TaskErrUnknown     = "unknown"
)

func (e *TaskError) Error() string {
	if e.Op != "" {
		return e.Op + ": " + e.Message
	}
	return e.Message
}

// TaskRecord is the persisted, schedulable unit: a graph root plus
// scheduling metadata and, after execution, the outcome.
type TaskRecord struct {
	Name     string        `json:"name"`
	Root     *TaskNode     `json:"root"`
	Metadata interface{}   `json:"metadata,omitempty"`
	Runtime  time.Duration `json:"runtime,omitempty"`
	Value    interface{}   `json:"value,omitempty"`
	Error    *TaskError    `json:"error,omitempty"`
}

// Succeeded reports whether the record's captured error is absent.
// Partition membership after a run is defined by exactly this.
func (r *TaskRecord) Succeeded() bool {
	return r.Error == nil
}

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

type Partition string

const (
	PartitionPending   Partition = "pending"
	PartitionSucceeded Partition = "succeeded"
	PartitionFailed    Partition = "failed"
)

// Call carries the resolved inputs of one operation invocation.
// Session is the named-value bundle captured by the scheduler, nil
// when no snapshot was configured.
type Call struct {
	Args    []interface{}
	Kwargs  map[string]interface{}
	Session map[string]interface{}
}

// OpFunc is a registered operation. Operations are addressed by name
// so that a record can reference them from another process without
// serializing code.
type OpFunc func(ctx context.Context, call Call) (interface{}, error)
