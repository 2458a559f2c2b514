// Package journal keeps a durable, queryable copy of lifecycle events
// in a badger database next to the record store. It backs the
// lifecycle log's best-effort file output with something that survives
// the run and can be inspected per record afterwards.
package journal

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/eleven-am/glade/internal/domain"
	"github.com/eleven-am/glade/internal/xjson"
)

const (
	eventPrefix  = "event:"
	recordPrefix = "record:"
)

type Journal struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Open creates or reopens the journal database at dir.
func Open(dir string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	options := badger.DefaultOptions(dir)
	options.Logger = nil

	db, err := badger.Open(options)
	if err != nil {
		return nil, domain.NewStorageError("journal open", err)
	}
	seq, err := db.GetSequence([]byte("journal-seq"), 64)
	if err != nil {
		db.Close()
		return nil, domain.NewStorageError("journal open", err)
	}

	return &Journal{
		db:     db,
		seq:    seq,
		logger: logger.With("component", "journal"),
	}, nil
}

// Append stores one event under a monotonic sequence key and a
// per-record index key.
func (j *Journal) Append(event domain.TaskEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return domain.ErrClosed
	}

	data, err := xjson.Marshal(event)
	if err != nil {
		return domain.NewStorageError("journal append", err)
	}
	next, err := j.seq.Next()
	if err != nil {
		return domain.NewStorageError("journal append", err)
	}

	eventKey := fmt.Sprintf("%s%020d", eventPrefix, next)
	recordKey := fmt.Sprintf("%s%s:%020d", recordPrefix, event.Record, next)

	err = j.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(eventKey), data); err != nil {
			return err
		}
		return txn.Set([]byte(recordKey), data)
	})
	if err != nil {
		return domain.NewStorageError("journal append", err)
	}
	return nil
}

// Emit satisfies the event sink contract.
func (j *Journal) Emit(event domain.TaskEvent) error {
	return j.Append(event)
}

// List returns events in append order, up to limit (0 means all).
func (j *Journal) List(limit int) ([]domain.TaskEvent, error) {
	return j.list(eventPrefix, limit)
}

// ListByRecord returns the events observed for one record name.
func (j *Journal) ListByRecord(name string) ([]domain.TaskEvent, error) {
	return j.list(recordPrefix+name+":", 0)
}

func (j *Journal) list(prefix string, limit int) ([]domain.TaskEvent, error) {
	var events []domain.TaskEvent

	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if limit > 0 && len(events) >= limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var event domain.TaskEvent
				if err := xjson.Unmarshal(value, &event); err != nil {
					return err
				}
				events = append(events, event)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("journal list", err)
	}
	return events, nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	if err := j.seq.Release(); err != nil {
		j.logger.Warn("could not release journal sequence", "error", err)
	}
	return j.db.Close()
}
