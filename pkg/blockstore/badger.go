package blockstore

import (
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/ipfs/go-cid"
	"github.com/klauspost/compress/zstd"
)

// Key prefixes for BadgerDB storage.
var (
	// prefixBlock is the prefix for block data.
	// Key format: prefixBlock + cid bytes
	prefixBlock = []byte{0x01}
)

// Value encoding flags. Every stored value carries a one-byte flag so
// the compression threshold can change without invalidating old data.
const (
	valueRaw  = 0x00
	valueZstd = 0x01
)

// BadgerConfig contains configuration for the BadgerDB blockstore.
type BadgerConfig struct {
	// Path is the directory path for the database.
	Path string

	// InMemory runs the database in memory (for testing).
	InMemory bool

	// SyncWrites ensures writes are synced to disk.
	// Setting to false improves performance but risks data loss on crash.
	SyncWrites bool

	// NumCompactors is the number of compaction workers.
	NumCompactors int

	// NumMemtables is the number of memtables.
	NumMemtables int

	// ValueLogFileSize is the size of each value log file.
	ValueLogFileSize int64

	// CompressionThreshold is the minimum block size, in bytes, at
	// which values are zstd-compressed before storage. Zero disables
	// compression.
	CompressionThreshold int

	// Logger is an optional logger. Set to nil to disable logging.
	Logger badger.Logger
}

// DefaultBadgerConfig returns default configuration.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:                 path,
		InMemory:             false,
		SyncWrites:           false, // Async for performance
		NumCompactors:        4,
		NumMemtables:         5,
		ValueLogFileSize:     256 << 20, // 256MB
		CompressionThreshold: 4096,
		Logger:               nil, // Disable logging by default
	}
}

// BadgerBlockstore is a BadgerDB-backed Blockstore.
//
// BadgerDB's LSM tree keeps the short CID keys hot while large block
// bodies live in the value log, which suits state trees whose nodes
// range from tens of bytes to megabytes. Values above the configured
// threshold are stored zstd-compressed.
type BadgerBlockstore struct {
	db     *badger.DB
	config BadgerConfig

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	closed atomic.Bool
}

// OpenBadger creates or opens a BadgerDB-backed blockstore.
func OpenBadger(cfg BadgerConfig) (*BadgerBlockstore, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumCompactors(cfg.NumCompactors).
		WithNumMemtables(cfg.NumMemtables).
		WithValueLogFileSize(cfg.ValueLogFileSize).
		WithLogger(cfg.Logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &BadgerBlockstore{
		db:      db,
		config:  cfg,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// blockKey returns the BadgerDB key for a block.
func blockKey(c cid.Cid) []byte {
	raw := c.Bytes()
	key := make([]byte, 1+len(raw))
	key[0] = prefixBlock[0]
	copy(key[1:], raw)
	return key
}

// Has checks whether a block exists.
func (b *BadgerBlockstore) Has(c cid.Cid) (bool, error) {
	if b.closed.Load() {
		return false, ErrClosed
	}

	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(blockKey(c))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// Get retrieves a block by CID.
func (b *BadgerBlockstore) Get(c cid.Cid) ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(c))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := b.decodeValue(val)
			if err != nil {
				return err
			}
			data = decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put stores a block under its CID.
func (b *BadgerBlockstore) Put(c cid.Cid, data []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}

	val := b.encodeValue(data)
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(c), val)
	})
}

// PutMany stores a batch of blocks through a single write batch.
func (b *BadgerBlockstore) PutMany(blocks map[cid.Cid][]byte) error {
	if b.closed.Load() {
		return ErrClosed
	}

	batch := b.db.NewWriteBatch()
	defer batch.Cancel()

	for c, data := range blocks {
		if err := batch.Set(blockKey(c), b.encodeValue(data)); err != nil {
			return err
		}
	}
	return batch.Flush()
}

// Delete removes a block. Deleting an absent block is not an error.
func (b *BadgerBlockstore) Delete(c cid.Cid) error {
	if b.closed.Load() {
		return ErrClosed
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(blockKey(c))
	})
}

// Sync ensures all writes are persisted to disk.
func (b *BadgerBlockstore) Sync() error {
	if b.closed.Load() {
		return ErrClosed
	}
	return b.db.Sync()
}

// RunGC runs garbage collection on the value log.
// This should be called periodically to reclaim space.
func (b *BadgerBlockstore) RunGC() error {
	if b.closed.Load() {
		return ErrClosed
	}
	return b.db.RunValueLogGC(0.5)
}

// Size returns the size of the database in bytes.
func (b *BadgerBlockstore) Size() (lsm, vlog int64) {
	return b.db.Size()
}

// Close closes the database.
func (b *BadgerBlockstore) Close() error {
	if b.closed.Swap(true) {
		return ErrClosed
	}
	b.encoder.Close()
	b.decoder.Close()
	return b.db.Close()
}

// encodeValue prepends the encoding flag, compressing the body when it
// crosses the configured threshold.
func (b *BadgerBlockstore) encodeValue(data []byte) []byte {
	if b.config.CompressionThreshold > 0 && len(data) >= b.config.CompressionThreshold {
		return b.encoder.EncodeAll(data, []byte{valueZstd})
	}
	val := make([]byte, 1+len(data))
	val[0] = valueRaw
	copy(val[1:], data)
	return val
}

func (b *BadgerBlockstore) decodeValue(val []byte) ([]byte, error) {
	if len(val) == 0 {
		return nil, fmt.Errorf("empty stored value")
	}
	switch val[0] {
	case valueRaw:
		out := make([]byte, len(val)-1)
		copy(out, val[1:])
		return out, nil
	case valueZstd:
		return b.decoder.DecodeAll(val[1:], nil)
	default:
		return nil, fmt.Errorf("unknown value encoding 0x%02x", val[0])
	}
}

// Verify interface compliance.
var _ Blockstore = (*BadgerBlockstore)(nil)
