package blockstore

import (
	"sync"

	"github.com/ipfs/go-cid"
)

// BufferedBlockstore stages writes in memory in front of a backing
// store. A message execution writes its state tree here; on success
// the buffer is flushed in one batch, on failure it is discarded, so
// the backing store only ever sees committed state.
//
// Reads fall through to the backing store when the buffer misses.
// Deletes only affect the buffer.
type BufferedBlockstore struct {
	mu      sync.RWMutex
	backing Blockstore
	buffer  map[cid.Cid][]byte
}

// NewBuffered wraps a backing blockstore with a write buffer.
func NewBuffered(backing Blockstore) *BufferedBlockstore {
	return &BufferedBlockstore{
		backing: backing,
		buffer:  make(map[cid.Cid][]byte),
	}
}

// Has checks the buffer, then the backing store.
func (b *BufferedBlockstore) Has(c cid.Cid) (bool, error) {
	b.mu.RLock()
	_, ok := b.buffer[c]
	b.mu.RUnlock()
	if ok {
		return true, nil
	}
	return b.backing.Has(c)
}

// Get reads from the buffer, falling through to the backing store.
func (b *BufferedBlockstore) Get(c cid.Cid) ([]byte, error) {
	b.mu.RLock()
	data, ok := b.buffer[c]
	b.mu.RUnlock()
	if ok {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	return b.backing.Get(c)
}

// Put stages a block in the buffer.
func (b *BufferedBlockstore) Put(c cid.Cid, data []byte) error {
	owned := make([]byte, len(data))
	copy(owned, data)

	b.mu.Lock()
	b.buffer[c] = owned
	b.mu.Unlock()
	return nil
}

// PutMany stages a batch of blocks in the buffer.
func (b *BufferedBlockstore) PutMany(blocks map[cid.Cid][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c, data := range blocks {
		owned := make([]byte, len(data))
		copy(owned, data)
		b.buffer[c] = owned
	}
	return nil
}

// Delete removes a block from the buffer only; the backing store is
// never mutated by a delete.
func (b *BufferedBlockstore) Delete(c cid.Cid) error {
	b.mu.Lock()
	delete(b.buffer, c)
	b.mu.Unlock()
	return nil
}

// Flush writes all buffered blocks to the backing store and empties
// the buffer. On error the buffer is left intact for retry.
func (b *BufferedBlockstore) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.buffer) == 0 {
		return nil
	}
	if err := b.backing.PutMany(b.buffer); err != nil {
		return err
	}
	b.buffer = make(map[cid.Cid][]byte)
	return nil
}

// Discard drops all buffered blocks without touching the backing
// store.
func (b *BufferedBlockstore) Discard() {
	b.mu.Lock()
	b.buffer = make(map[cid.Cid][]byte)
	b.mu.Unlock()
}

// Buffered returns the number of blocks pending in the buffer.
func (b *BufferedBlockstore) Buffered() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.buffer)
}

// Verify interface compliance.
var _ Blockstore = (*BufferedBlockstore)(nil)
