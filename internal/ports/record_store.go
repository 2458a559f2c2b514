package ports

import (
	"iter"

	"github.com/eleven-am/glade/internal/domain"
)

// RecordStorePort is the three-partition persistence surface shared by
// the coordinator and the facade. Implementations must make partition
// transitions atomic with respect to concurrent enumeration: a reader
// never observes a half-moved record.
type RecordStorePort interface {
	// Schedule assigns a fresh storage name, attaches metadata and
	// persists the record into the pending partition. In read-only
	// mode it returns ("", nil) without writing.
	Schedule(record *domain.TaskRecord, metadata interface{}) (name string, err error)

	// Pending, Succeeded and Failed enumerate their partition lazily.
	// Enumeration order is filesystem-defined, not schedule order.
	Pending() iter.Seq2[*domain.TaskRecord, error]
	Succeeded() iter.Seq2[*domain.TaskRecord, error]
	Failed() iter.Seq2[*domain.TaskRecord, error]

	// PendingNames snapshots the names currently in the pending
	// partition.
	PendingNames() ([]string, error)

	// Load reads one record from a partition by name.
	Load(partition domain.Partition, name string) (*domain.TaskRecord, error)

	// Reconcile moves a pending record into its terminal partition. If
	// the worker never wrote its output, a record carrying synth as
	// its error is synthesized; synth is ignored for succeeded
	// outcomes and for workers that already captured an error.
	Reconcile(name string, outcome domain.Outcome, synth *domain.TaskError) (*domain.TaskRecord, error)

	// PendingPath and OutputPath expose the file pair handed to a
	// worker process for one record.
	PendingPath(name string) string
	OutputPath(name string) string

	// SessionPath is the location of the per-run session snapshot.
	SessionPath() string

	// Purge deletes the named partitions, or everything including the
	// root when called with none.
	Purge(partitions ...domain.Partition) error

	Close() error
}
