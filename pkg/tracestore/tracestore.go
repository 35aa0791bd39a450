// Package tracestore provides persistent storage for execution gas
// traces, keyed by execution identifier.
package tracestore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cobaltchain/cobalt-fvm/pkg/gas"
)

var (
	// ErrTraceNotFound is returned when a trace doesn't exist.
	ErrTraceNotFound = errors.New("trace not found")

	// ErrClosed is returned when operating on a closed tracestore.
	ErrClosed = errors.New("tracestore closed")

	// ErrEmptyID is returned for a trace with no identifier.
	ErrEmptyID = errors.New("empty trace id")
)

// Bucket names for BoltDB.
var (
	// bucketTraces stores gob-encoded trace records keyed by id.
	bucketTraces = []byte("traces")

	// bucketMetadata stores tracestore metadata.
	bucketMetadata = []byte("metadata")
)

// Metadata keys.
var (
	keyTraceCount = []byte("trace_count")
)

// Record is one archived execution trace: the frame's gas envelope
// plus the ordered charge list drained from its tracker.
type Record struct {
	// ID identifies the execution, typically the message CID string.
	ID string

	// Epoch is the chain epoch the execution ran at.
	Epoch int64

	// GasLimit is the frame's gas limit.
	GasLimit gas.Gas

	// GasUsed is the total gas consumed, clamped to the limit.
	GasUsed gas.Gas

	// Charges is the ordered charge trace.
	Charges []gas.Charge

	// RecordedAt is when the trace was archived.
	RecordedAt time.Time
}

// Config holds tracestore configuration options.
type Config struct {
	// Path is the file path for the tracestore database.
	Path string

	// NoSync disables fsync after each write (faster but less durable).
	NoSync bool

	// ReadOnly opens the database in read-only mode.
	ReadOnly bool
}

// DefaultConfig returns the default tracestore configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:     path,
		NoSync:   false,
		ReadOnly: false,
	}
}

// Store is a BoltDB-backed trace archive.
type Store struct {
	db     *bolt.DB
	config Config

	// Cached count for fast stats.
	mu         sync.RWMutex
	traceCount uint64

	closed bool
}

// Open creates or opens a tracestore at the given path.
func Open(config Config) (*Store, error) {
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	opts := &bolt.Options{
		Timeout:  5 * time.Second,
		NoSync:   config.NoSync,
		ReadOnly: config.ReadOnly,
	}
	db, err := bolt.Open(config.Path, 0600, opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{
		db:     db,
		config: config,
	}

	// Initialize buckets (skip in read-only mode).
	if !config.ReadOnly {
		if err := store.initBuckets(); err != nil {
			db.Close()
			return nil, fmt.Errorf("init buckets: %w", err)
		}
	}

	if err := store.loadCachedValues(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load cached values: %w", err)
	}

	return store, nil
}

// initBuckets creates all required buckets.
func (s *Store) initBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketTraces,
			bucketMetadata,
		}
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// loadCachedValues loads frequently-accessed values into memory.
func (s *Store) loadCachedValues() error {
	return s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMetadata)
		if meta == nil {
			return nil // Empty database, no values to load.
		}
		if v := meta.Get(keyTraceCount); len(v) == 8 {
			s.traceCount = binary.BigEndian.Uint64(v)
		}
		return nil
	})
}

// Put archives a trace record under its ID, replacing any existing
// record with the same ID.
func (s *Store) Put(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if rec.ID == "" {
		return ErrEmptyID
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}

	var added bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTraces)
		added = b.Get([]byte(rec.ID)) == nil
		if err := b.Put([]byte(rec.ID), buf.Bytes()); err != nil {
			return err
		}
		if added {
			return s.storeCount(tx, s.traceCount+1)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if added {
		s.traceCount++
	}
	return nil
}

// Get retrieves a trace record by ID.
func (s *Store) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var rec Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTraces)
		if b == nil {
			return ErrTraceNotFound
		}
		v := b.Get([]byte(id))
		if v == nil {
			return ErrTraceNotFound
		}
		return gob.NewDecoder(bytes.NewReader(v)).Decode(&rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Has checks whether a trace exists.
func (s *Store) Has(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}

	var exists bool
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucketTraces); b != nil {
			exists = b.Get([]byte(id)) != nil
		}
		return nil
	})
	return exists, err
}

// Delete removes a trace. Deleting an absent trace is not an error.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	var removed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTraces)
		if b.Get([]byte(id)) == nil {
			return nil
		}
		removed = true
		if err := b.Delete([]byte(id)); err != nil {
			return err
		}
		return s.storeCount(tx, s.traceCount-1)
	})
	if err != nil {
		return err
	}
	if removed {
		s.traceCount--
	}
	return nil
}

// IDs returns all archived trace IDs in key order.
func (s *Store) IDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTraces)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Count returns the number of archived traces.
func (s *Store) Count() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.traceCount
}

// Sync flushes the database to disk.
func (s *Store) Sync() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.Sync()
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	return s.db.Close()
}

// storeCount persists the trace count inside an open write txn.
func (s *Store) storeCount(tx *bolt.Tx, count uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, count)
	return tx.Bucket(bucketMetadata).Put(keyTraceCount, buf)
}
