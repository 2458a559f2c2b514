package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/glade/internal/adapters/graph"
	"github.com/eleven-am/glade/internal/domain"
	"github.com/eleven-am/glade/internal/xjson"
)

func openStore(t *testing.T, config domain.StoreConfig) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "records"), config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func scheduleOne(t *testing.T, s *Store) (string, *domain.TaskNode) {
	t.Helper()
	node := graph.Defer("identity", 42)
	name, err := s.Schedule(&domain.TaskRecord{Root: node}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, name)
	return name, node
}

func collect(t *testing.T, seq func(func(*domain.TaskRecord, error) bool)) []*domain.TaskRecord {
	t.Helper()
	var records []*domain.TaskRecord
	for record, err := range seq {
		require.NoError(t, err)
		records = append(records, record)
	}
	return records
}

func TestScheduleRoundTrip(t *testing.T) {
	s := openStore(t, domain.StoreConfig{})
	name, node := scheduleOne(t, s)

	pending := collect(t, s.Pending())
	require.Len(t, pending, 1)
	assert.Equal(t, name, pending[0].Name)
	// The record read back is structurally equal to the one scheduled.
	assert.True(t, domain.Equal(node, pending[0].Root))
	assert.Equal(t, node.ID, pending[0].Root.ID)
}

func TestScheduleAttachesMetadata(t *testing.T) {
	s := openStore(t, domain.StoreConfig{})
	name, err := s.Schedule(&domain.TaskRecord{Root: graph.Literal(1)}, map[string]interface{}{"tag": "batch-7"})
	require.NoError(t, err)

	record, err := s.Load(domain.PartitionPending, name)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"tag": "batch-7"}, record.Metadata)
}

func TestScheduleRejectsBrokenGraph(t *testing.T) {
	s := openStore(t, domain.StoreConfig{})
	_, err := s.Schedule(&domain.TaskRecord{Root: graph.Defer("f", make(chan int))}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestOpenConflictWithoutReuse(t *testing.T) {
	root := filepath.Join(t.TempDir(), "records")

	first, err := Open(root, domain.StoreConfig{}, nil)
	require.NoError(t, err)
	scheduleOne(t, first)
	require.NoError(t, first.Close())

	_, err = Open(root, domain.StoreConfig{}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsStoreConflict(err))

	reused, err := Open(root, domain.StoreConfig{Reuse: true}, nil)
	require.NoError(t, err)
	assert.Len(t, collect(t, reused.Pending()), 1)
	reused.Close()
}

func TestReadOnlyScheduleIsNoOp(t *testing.T) {
	root := filepath.Join(t.TempDir(), "records")

	first, err := Open(root, domain.StoreConfig{}, nil)
	require.NoError(t, err)
	scheduleOne(t, first)
	first.Close()

	attached, err := Open(root, domain.StoreConfig{ReadOnly: true}, nil)
	require.NoError(t, err)
	defer attached.Close()

	name, err := attached.Schedule(&domain.TaskRecord{Root: graph.Literal(2)}, nil)
	require.NoError(t, err)
	assert.Empty(t, name)
	assert.Len(t, collect(t, attached.Pending()), 1)
}

func TestReconcileSuccess(t *testing.T) {
	s := openStore(t, domain.StoreConfig{})
	name, node := scheduleOne(t, s)

	// The worker writes its outcome to the succeeded partition path.
	outcome := &domain.TaskRecord{Name: name, Root: node, Value: float64(42)}
	data, err := xjson.Marshal(outcome)
	require.NoError(t, err)
	require.NoError(t, WriteAtomic(s.OutputPath(name), data))

	record, err := s.Reconcile(name, domain.OutcomeSucceeded, nil)
	require.NoError(t, err)
	assert.True(t, record.Succeeded())
	assert.Equal(t, float64(42), record.Value)

	assert.Empty(t, collect(t, s.Pending()))
	assert.Empty(t, collect(t, s.Failed()))
	succeeded := collect(t, s.Succeeded())
	require.Len(t, succeeded, 1)
	assert.Equal(t, name, succeeded[0].Name)
}

func TestReconcileMissingOutputSynthesizesFailure(t *testing.T) {
	s := openStore(t, domain.StoreConfig{})
	name, _ := scheduleOne(t, s)

	// Worker crashed before writing anything; the record must not be
	// silently lost even though reconcile was asked for success.
	record, err := s.Reconcile(name, domain.OutcomeSucceeded, nil)
	require.NoError(t, err)
	require.NotNil(t, record.Error)
	assert.Equal(t, domain.TaskErrUnknown, record.Error.Kind)

	assert.Empty(t, collect(t, s.Pending()))
	assert.Empty(t, collect(t, s.Succeeded()))
	failed := collect(t, s.Failed())
	require.Len(t, failed, 1)
	assert.Equal(t, name, failed[0].Name)
}

func TestReconcileFailureMovesWorkerOutput(t *testing.T) {
	s := openStore(t, domain.StoreConfig{})
	name, node := scheduleOne(t, s)

	outcome := &domain.TaskRecord{
		Name: name,
		Root: node,
		Error: &domain.TaskError{
			Kind:    domain.TaskErrEvaluation,
			Message: "boom",
		},
	}
	data, err := xjson.Marshal(outcome)
	require.NoError(t, err)
	require.NoError(t, WriteAtomic(s.OutputPath(name), data))

	record, err := s.Reconcile(name, domain.OutcomeFailed, nil)
	require.NoError(t, err)
	assert.Equal(t, "boom", record.Error.Message)

	assert.Empty(t, collect(t, s.Succeeded()))
	require.Len(t, collect(t, s.Failed()), 1)
	_, err = os.Stat(s.OutputPath(name))
	assert.True(t, os.IsNotExist(err))
}

func TestReconcileSynthesizedErrorUsedOnlyWhenNeeded(t *testing.T) {
	s := openStore(t, domain.StoreConfig{})
	name, node := scheduleOne(t, s)

	outcome := &domain.TaskRecord{
		Name:  name,
		Root:  node,
		Error: &domain.TaskError{Kind: domain.TaskErrEvaluation, Message: "captured by worker"},
	}
	data, _ := xjson.Marshal(outcome)
	require.NoError(t, WriteAtomic(s.OutputPath(name), data))

	synth := &domain.TaskError{Kind: domain.TaskErrCrash, Message: "exit status 1"}
	record, err := s.Reconcile(name, domain.OutcomeFailed, synth)
	require.NoError(t, err)
	// The worker's own captured error wins over the synthesized one.
	assert.Equal(t, "captured by worker", record.Error.Message)
}

func TestWorkerErrorNeverLandsInSucceeded(t *testing.T) {
	s := openStore(t, domain.StoreConfig{})
	name, node := scheduleOne(t, s)

	outcome := &domain.TaskRecord{
		Name:  name,
		Root:  node,
		Error: &domain.TaskError{Kind: domain.TaskErrEvaluation, Message: "failed"},
	}
	data, _ := xjson.Marshal(outcome)
	require.NoError(t, WriteAtomic(s.OutputPath(name), data))

	// Even if the exit status was misread as success, the error field
	// decides the partition.
	record, err := s.Reconcile(name, domain.OutcomeSucceeded, nil)
	require.NoError(t, err)
	assert.False(t, record.Succeeded())
	assert.Empty(t, collect(t, s.Succeeded()))
	assert.Len(t, collect(t, s.Failed()), 1)
}

func TestPurgePartitions(t *testing.T) {
	s := openStore(t, domain.StoreConfig{})
	scheduleOne(t, s)

	require.NoError(t, s.Purge(domain.PartitionPending))
	assert.Empty(t, collect(t, s.Pending()))

	// Partition dirs are recreated; scheduling still works.
	scheduleOne(t, s)
	assert.Len(t, collect(t, s.Pending()), 1)
}

func TestPurgeEverythingClosesStore(t *testing.T) {
	s := openStore(t, domain.StoreConfig{})
	scheduleOne(t, s)

	require.NoError(t, s.Purge())
	_, err := os.Stat(s.Root())
	assert.True(t, os.IsNotExist(err))

	_, err = s.Schedule(&domain.TaskRecord{Root: graph.Literal(1)}, nil)
	assert.ErrorIs(t, err, domain.ErrClosed)
}

func TestAutoCleanOnClose(t *testing.T) {
	root := filepath.Join(t.TempDir(), "records")
	s, err := Open(root, domain.StoreConfig{AutoClean: true}, nil)
	require.NoError(t, err)
	scheduleOne(t, s)

	require.NoError(t, s.Close())
	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err))
}

func TestIterationSkipsRecordsMovedMidway(t *testing.T) {
	s := openStore(t, domain.StoreConfig{})
	name, _ := scheduleOne(t, s)
	scheduleOne(t, s)

	// Reconcile one record between listing and reading: the reader
	// must observe it in one partition or the other, never half-moved.
	var seen int
	for record, err := range s.Pending() {
		require.NoError(t, err)
		require.NotNil(t, record)
		seen++
		if record.Name == name {
			_, err := s.Reconcile(name, domain.OutcomeSucceeded, nil)
			require.NoError(t, err)
		}
	}
	assert.GreaterOrEqual(t, seen, 1)
}
