package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const sequenceBandwidth = 100

type badgerLogger struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...any) {
	l.logger.Error(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Warningf(msg string, items ...any) {
	l.logger.Warn(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Infof(msg string, items ...any) {
	l.logger.Debug(fmt.Sprintf(msg, items...))
}

func (l *badgerLogger) Debugf(msg string, items ...any) {
	l.logger.Debug(fmt.Sprintf(msg, items...))
}

// BadgerStore is the embedded document store. Each collection gets its own
// sequence so ids are monotonic and keys sort in insertion order.
type BadgerStore struct {
	db *badger.DB

	mu   sync.Mutex
	seqs map[string]*badger.Sequence
}

// OpenBadgerStore opens (or creates) a store under dir. With inMemory set the
// dir is ignored and nothing touches disk.
func OpenBadgerStore(dir string, inMemory bool, logger *slog.Logger) (*BadgerStore, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create badger dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{logger: logger.With("component", "badger")}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &BadgerStore{db: db, seqs: make(map[string]*badger.Sequence)}, nil
}

func documentKey(collection string, seq uint64) []byte {
	return []byte(fmt.Sprintf("doc:%s:%020d", collection, seq))
}

func collectionPrefix(collection string) []byte {
	return []byte("doc:" + collection + ":")
}

func (s *BadgerStore) sequence(collection string) (*badger.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq, ok := s.seqs[collection]; ok {
		return seq, nil
	}
	seq, err := s.db.GetSequence([]byte("seq:"+collection), sequenceBandwidth)
	if err != nil {
		return nil, err
	}
	s.seqs[collection] = seq
	return seq, nil
}

func (s *BadgerStore) nextID(collection string) (uint64, error) {
	seq, err := s.sequence(collection)
	if err != nil {
		return 0, err
	}
	id, err := seq.Next()
	if err != nil {
		return 0, err
	}
	// Sequences start at zero; keep ids positive.
	if id == 0 {
		id, err = seq.Next()
	}
	return id, err
}

func (s *BadgerStore) Insert(ctx context.Context, collection string, record any) (string, error) {
	data, err := encodeRecord("insert", collection, record)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", storeFailure("insert", collection, err)
	}

	id, err := s.nextID(collection)
	if err != nil {
		return "", storeFailure("insert", collection, fmt.Errorf("failed to allocate id: %w", err))
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(documentKey(collection, id), data)
	})
	if err != nil {
		return "", storeFailure("insert", collection, err)
	}

	return strconv.FormatUint(id, 10), nil
}

func (s *BadgerStore) ListAll(ctx context.Context, collection string) ([]Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, storeFailure("list", collection, err)
	}

	prefix := collectionPrefix(collection)
	docs := []Document{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			seq, err := strconv.ParseUint(string(item.Key()[len(prefix):]), 10, 64)
			if err != nil {
				return fmt.Errorf("malformed key %q: %w", item.Key(), err)
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			docs = append(docs, Document{ID: strconv.FormatUint(seq, 10), Data: data})
		}
		return nil
	})
	if err != nil {
		return nil, storeFailure("list", collection, err)
	}
	return docs, nil
}

// Close releases leased sequence ranges before closing the database.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, seq := range s.seqs {
		if err := seq.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release sequence %s: %w", name, err))
		}
		delete(s.seqs, name)
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

var _ DocumentStore = (*BadgerStore)(nil)
