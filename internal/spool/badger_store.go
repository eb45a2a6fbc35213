package spool

import (
	"encoding/binary"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerStore is a Store implementation backed by BadgerDB, used for
// Config.Storage == PERSISTENT. Keys are the record id encoded as an
// 8-byte big-endian integer so that BadgerDB's natural lexicographic
// iteration order is ascending id order, which is exactly the order
// LoadAll must return for crash recovery (spec §6, §9).
//
// Grounded on haivivi-giztoy/go/pkg/kv/badger.go's View/Update/iterator
// usage of *badger.DB.
type BadgerStore struct {
	db *badger.DB
}

// BadgerStoreOptions configures the on-disk spool store.
type BadgerStoreOptions struct {
	// Dir is the directory BadgerDB will use for its data files.
	Dir string

	// InMemory runs BadgerDB without touching disk, useful for tests
	// that want real Badger transaction semantics without a tmp dir.
	InMemory bool

	// Logger silences or redirects BadgerDB's own logging. If nil,
	// BadgerDB's default logger is used.
	Logger badger.Logger
}

func OpenBadgerStore(opts BadgerStoreOptions) (*BadgerStore, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, fmt.Errorf("spool: BadgerStoreOptions.Dir is required unless InMemory is set")
	}

	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	if opts.Logger != nil {
		dbOpts = dbOpts.WithLogger(opts.Logger)
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("spool: opening badger store: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

func encodeKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

func (s *BadgerStore) Save(rec *Record) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(encodeKey(rec.ID), data)
	})
}

func (s *BadgerStore) Delete(id uint64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(encodeKey(id))
	})
	if err != nil {
		return fmt.Errorf("spool: deleting record %d: %w", id, err)
	}
	return nil
}

func (s *BadgerStore) LoadAll() ([]*Record, error) {
	var records []*Record

	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			value, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("spool: reading recovered record: %w", err)
			}

			rec := &Record{}
			if err := rec.UnmarshalBinary(value); err != nil {
				return fmt.Errorf("spool: decoding recovered record: %w", err)
			}

			records = append(records, rec)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// BadgerDB iterates keys in lexicographic order, which for
	// fixed-width big-endian uint64 keys is already ascending id order;
	// the explicit sort is a defensive guarantee against any future
	// change to key encoding, not a correction of observed behavior.
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	return records, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
