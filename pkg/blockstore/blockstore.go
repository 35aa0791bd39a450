// Package blockstore provides content-addressed storage for IPLD
// blocks keyed by CID.
package blockstore

import (
	"errors"
	"sync"

	"github.com/ipfs/go-cid"
)

var (
	// ErrNotFound is returned when a block doesn't exist.
	ErrNotFound = errors.New("block not found")

	// ErrClosed is returned when operating on a closed blockstore.
	ErrClosed = errors.New("blockstore closed")
)

// Blockstore is the content-addressed block interface the kernel's
// state operations are written against. Get returns a copy the caller
// owns; Put never retains the passed slice.
type Blockstore interface {
	Has(c cid.Cid) (bool, error)
	Get(c cid.Cid) ([]byte, error)
	Put(c cid.Cid, data []byte) error
	PutMany(blocks map[cid.Cid][]byte) error
	Delete(c cid.Cid) error
}

// MemBlockstore is an in-memory Blockstore for tests and ephemeral
// execution contexts.
type MemBlockstore struct {
	mu     sync.RWMutex
	blocks map[string][]byte
}

// NewMemBlockstore creates an empty in-memory blockstore.
func NewMemBlockstore() *MemBlockstore {
	return &MemBlockstore{blocks: make(map[string][]byte)}
}

// Has checks whether a block exists.
func (m *MemBlockstore) Has(c cid.Cid) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocks[c.KeyString()]
	return ok, nil
}

// Get retrieves a block by CID.
func (m *MemBlockstore) Get(c cid.Cid) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blocks[c.KeyString()]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Put stores a block under its CID.
func (m *MemBlockstore) Put(c cid.Cid, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(c, data)
	return nil
}

// PutMany stores a batch of blocks.
func (m *MemBlockstore) PutMany(blocks map[cid.Cid][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for c, data := range blocks {
		m.putLocked(c, data)
	}
	return nil
}

// Delete removes a block. Deleting an absent block is not an error.
func (m *MemBlockstore) Delete(c cid.Cid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blocks, c.KeyString())
	return nil
}

// Len returns the number of stored blocks.
func (m *MemBlockstore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}

func (m *MemBlockstore) putLocked(c cid.Cid, data []byte) {
	owned := make([]byte, len(data))
	copy(owned, data)
	m.blocks[c.KeyString()] = owned
}

// Verify interface compliance.
var _ Blockstore = (*MemBlockstore)(nil)
