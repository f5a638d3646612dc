package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	gserrors "github.com/cuemby/groupsync/pkg/errors"
	"github.com/cuemby/groupsync/pkg/types"
)

// MemoryQueue is a Queue kept in process memory. Checkpoints are copied on
// save and load so callers never share state with the queue.
type MemoryQueue struct {
	mu    sync.Mutex
	items map[string][]byte
}

// NewMemoryQueue creates an empty in-memory queue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{items: make(map[string][]byte)}
}

func (q *MemoryQueue) SaveCheckpoint(cp *types.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[cp.Name] = data
	return nil
}

func (q *MemoryQueue) LoadCheckpoint(name string) (*types.Checkpoint, error) {
	q.mu.Lock()
	data, ok := q.items[name]
	q.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("queue %s: %w", name, gserrors.ErrNoCheckpoint)
	}
	var cp types.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (q *MemoryQueue) DeleteCheckpoint(name string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.items, name)
	return nil
}

// Len returns the number of stored checkpoints
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
