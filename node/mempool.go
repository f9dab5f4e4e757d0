package node

import (
	"sync"

	"github.com/aurex-chain/aurex/chaintypes"
)

// mempool is a FIFO queue of not-yet-sealed transactions at one node (§3).
// Deduplication by tx_id is the gateway's responsibility; this node accepts
// duplicates as the spec requires.
type mempool struct {
	mu      sync.Mutex
	entries []chaintypes.MempoolEntry
}

func newMempool() *mempool {
	return &mempool{}
}

// Push appends a newly received transaction to the tail of the queue.
func (m *mempool) Push(e chaintypes.MempoolEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

// Peek returns the head entry without removing it, and whether one exists.
func (m *mempool) Peek() (chaintypes.MempoolEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return chaintypes.MempoolEntry{}, false
	}
	return m.entries[0], true
}

// Pop removes and returns the head entry.
func (m *mempool) Pop() (chaintypes.MempoolEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return chaintypes.MempoolEntry{}, false
	}
	head := m.entries[0]
	m.entries = m.entries[1:]
	return head, true
}

// Len reports the current queue length.
func (m *mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
