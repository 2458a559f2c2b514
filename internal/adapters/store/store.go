// Package store persists task records under one root directory with
// three partition subdirectories, pending, succeeded and failed. The
// directories are the only state shared between the coordinator and
// its workers; every transition between partitions is a rename, so a
// concurrent reader never observes a half-moved record.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/eleven-am/glade/internal/domain"
	"github.com/eleven-am/glade/internal/xjson"
)

const (
	recordSuffix = ".json"
	sessionFile  = "session.json"
)

var partitions = []domain.Partition{
	domain.PartitionPending,
	domain.PartitionSucceeded,
	domain.PartitionFailed,
}

type Store struct {
	root   string
	config domain.StoreConfig
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Open prepares the partition directories under root. Opening an
// existing root that already holds records is an error unless the
// configuration allows reuse; read-only mode implies reuse and makes
// Schedule a no-op.
func Open(root string, config domain.StoreConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if root == "" {
		return nil, domain.NewValidationError("store root is required", nil)
	}

	s := &Store{
		root:   root,
		config: config,
		logger: logger.With("component", "record-store"),
	}

	if !config.Reuse && !config.ReadOnly {
		held, err := s.holdsRecords()
		if err != nil {
			return nil, domain.NewStorageError("open", err)
		}
		if held {
			return nil, fmt.Errorf("%w: %s", domain.ErrStoreConflict, root)
		}
	}

	for _, partition := range partitions {
		if err := os.MkdirAll(s.dir(partition), 0o755); err != nil {
			return nil, domain.NewStorageError("open", err)
		}
	}

	return s, nil
}

// Schedule assigns a fresh name and writes the record into the pending
// partition. In read-only mode it silently accepts and drops the work,
// so re-attaching to a previous run's store never duplicates records.
func (s *Store) Schedule(record *domain.TaskRecord, metadata interface{}) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", domain.ErrClosed
	}
	if s.config.ReadOnly {
		s.logger.Debug("schedule ignored, store is read-only")
		return "", nil
	}
	if record == nil || record.Root == nil {
		return "", domain.NewValidationError("record has no graph root", nil)
	}
	if err := record.Root.BuildErr(); err != nil {
		return "", domain.NewValidationError("graph root failed to build: "+err.Error(), nil)
	}

	record.Name = uuid.New().String()
	if metadata != nil {
		record.Metadata = metadata
	}

	if err := s.writeRecord(domain.PartitionPending, record.Name, record); err != nil {
		return "", err
	}
	return record.Name, nil
}

// Pending enumerates the pending partition lazily. The sequence is
// restartable; order is filesystem-defined, not schedule order.
func (s *Store) Pending() iter.Seq2[*domain.TaskRecord, error] {
	return s.iterate(domain.PartitionPending)
}

func (s *Store) Succeeded() iter.Seq2[*domain.TaskRecord, error] {
	return s.iterate(domain.PartitionSucceeded)
}

func (s *Store) Failed() iter.Seq2[*domain.TaskRecord, error] {
	return s.iterate(domain.PartitionFailed)
}

func (s *Store) iterate(partition domain.Partition) iter.Seq2[*domain.TaskRecord, error] {
	return func(yield func(*domain.TaskRecord, error) bool) {
		names, err := s.names(partition)
		if err != nil {
			yield(nil, domain.NewStorageError("list", err))
			return
		}
		for _, name := range names {
			record, err := readRecord(s.path(partition, name))
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					// Moved out from under the listing by a
					// reconcile; a reader never sees half a record.
					continue
				}
				if !yield(nil, domain.NewStorageError("read", err)) {
					return
				}
				continue
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

// PendingNames snapshots the record names currently pending.
func (s *Store) PendingNames() ([]string, error) {
	return s.names(domain.PartitionPending)
}

// Load reads one record by name from the given partition.
func (s *Store) Load(partition domain.Partition, name string) (*domain.TaskRecord, error) {
	record, err := readRecord(s.path(partition, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrNotFound, partition, name)
		}
		return nil, domain.NewStorageError("read", err)
	}
	return record, nil
}

// Reconcile moves the named record out of pending into its terminal
// partition. Workers write their outcome directly to the succeeded
// partition path; a successful reconcile only has to drop the pending
// file, while a failure rewrites the record into failed. When the
// worker never produced readable output, a record carrying synth (or
// an unknown-failure error) is synthesized so no scheduled work is
// silently lost.
func (s *Store) Reconcile(name string, outcome domain.Outcome, synth *domain.TaskError) (*domain.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrClosed
	}

	pendingPath := s.path(domain.PartitionPending, name)
	outputPath := s.path(domain.PartitionSucceeded, name)

	record, err := readRecord(outputPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("worker output unreadable", "record", name, "error", err)
		}
		record = nil
	}

	if record == nil {
		if pending, perr := readRecord(pendingPath); perr == nil {
			record = pending
		} else {
			record = &domain.TaskRecord{Name: name}
		}
		outcome = domain.OutcomeFailed
		if synth == nil {
			synth = &domain.TaskError{
				Kind:    domain.TaskErrUnknown,
				Message: "worker produced no readable output",
			}
		}
	}

	// Partition membership is defined solely by the error field; a
	// worker that captured an error never lands in succeeded.
	if record.Error != nil {
		outcome = domain.OutcomeFailed
	}

	if outcome == domain.OutcomeFailed {
		if record.Error == nil {
			if synth == nil {
				synth = &domain.TaskError{
					Kind:    domain.TaskErrUnknown,
					Message: "unknown failure",
				}
			}
			record.Error = synth
		}
		if err := s.writeRecord(domain.PartitionFailed, name, record); err != nil {
			return nil, err
		}
		if err := os.Remove(outputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("could not remove worker output", "record", name, "error", err)
		}
	}

	if err := os.Remove(pendingPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("could not remove pending record", "record", name, "error", err)
	}

	return record, nil
}

// PendingPath returns the file a worker reads its record from.
func (s *Store) PendingPath(name string) string {
	return s.path(domain.PartitionPending, name)
}

// OutputPath returns the file a worker writes its outcome to. It
// lives in the succeeded partition; Reconcile reclassifies failures.
func (s *Store) OutputPath(name string) string {
	return s.path(domain.PartitionSucceeded, name)
}

// SessionPath returns the location of the per-run session snapshot.
func (s *Store) SessionPath() string {
	return filepath.Join(s.root, sessionFile)
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Purge deletes the named partitions and recreates them empty, or,
// called with no arguments, deletes everything including the root and
// closes the store. Explicit opt-in only.
func (s *Store) Purge(parts ...domain.Partition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeLocked(parts...)
}

func (s *Store) purgeLocked(parts ...domain.Partition) error {
	if len(parts) == 0 {
		if err := os.RemoveAll(s.root); err != nil {
			return domain.NewStorageError("purge", err)
		}
		s.closed = true
		return nil
	}
	for _, partition := range parts {
		if err := os.RemoveAll(s.dir(partition)); err != nil {
			return domain.NewStorageError("purge", err)
		}
		if err := os.MkdirAll(s.dir(partition), 0o755); err != nil {
			return domain.NewStorageError("purge", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if s.config.AutoClean {
		if err := s.purgeLocked(); err != nil {
			return err
		}
	}
	s.closed = true
	return nil
}

func (s *Store) dir(partition domain.Partition) string {
	return filepath.Join(s.root, string(partition))
}

func (s *Store) path(partition domain.Partition, name string) string {
	return filepath.Join(s.dir(partition), name+recordSuffix)
}

func (s *Store) names(partition domain.Partition) ([]string, error) {
	entries, err := os.ReadDir(s.dir(partition))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), recordSuffix))
	}
	return names, nil
}

func (s *Store) holdsRecords() (bool, error) {
	for _, partition := range partitions {
		names, err := s.names(partition)
		if err != nil {
			return false, err
		}
		if len(names) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// writeRecord lands atomically: serialize to a temp file in the
// target directory, then rename into place.
func (s *Store) writeRecord(partition domain.Partition, name string, record *domain.TaskRecord) error {
	data, err := xjson.Marshal(record)
	if err != nil {
		return domain.NewStorageError("serialize", err)
	}
	return WriteAtomic(s.path(partition, name), data)
}

// WriteAtomic writes data to path via a temp file and rename, so a
// concurrent reader sees either nothing or the whole file. Workers use
// it for their output records as well.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return domain.NewStorageError("write", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return domain.NewStorageError("write", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return domain.NewStorageError("write", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return domain.NewStorageError("write", err)
	}
	return nil
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
