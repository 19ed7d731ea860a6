// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package sequence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Key prefix for BadgerDB storage
const highWaterKeyPrefix = "seq_hwm:"

// Store persists per-topic high-water marks.
type Store interface {
	// Load returns the recorded high-water mark for topic, or 0.
	Load(topic string) (uint64, error)
	// Save records mark as the new high-water mark for topic.
	Save(topic string, mark uint64) error
	// Delete forgets topic.
	Delete(topic string) error
	Close() error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.Mutex
	marks map[string]uint64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{marks: make(map[string]uint64)}
}

func (s *MemoryStore) Load(topic string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marks[topic], nil
}

func (s *MemoryStore) Save(topic string, mark uint64) error {
	s.mu.Lock()
	s.marks[topic] = mark
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(topic string) error {
	s.mu.Lock()
	delete(s.marks, topic)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// BadgerStore implements Store using BadgerDB for durable high-water marks.
type BadgerStore struct {
	db     *badger.DB
	ownsDB bool
}

// NewBadgerStore wraps an existing database. The caller keeps ownership.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// OpenBadgerStore opens (or creates) a database at path.
// An empty path opens an in-memory database.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open sequence store: %w", err)
	}
	return &BadgerStore{db: db, ownsDB: true}, nil
}

func (s *BadgerStore) Load(topic string) (uint64, error) {
	var mark uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(highWaterKeyPrefix + topic))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt high-water mark for %q", topic)
			}
			mark = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("load high-water mark: %w", err)
	}
	return mark, nil
}

func (s *BadgerStore) Save(topic string, mark uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], mark)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(highWaterKeyPrefix+topic), buf[:]); err != nil {
			return fmt.Errorf("save high-water mark: %w", err)
		}
		return nil
	})
}

func (s *BadgerStore) Delete(topic string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(highWaterKeyPrefix + topic))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete high-water mark: %w", err)
		}
		return nil
	})
}

// Close closes the database if this store opened it.
func (s *BadgerStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
