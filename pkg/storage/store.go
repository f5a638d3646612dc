package storage

import (
	"github.com/cuemby/groupsync/pkg/types"
)

// StagingStore holds the job-scoped snapshots of a reconciliation.
// Every operation is independently atomic.
type StagingStore interface {
	// CreateSnapshot drops any existing snapshot of ref and creates an empty one
	CreateSnapshot(ref types.SnapshotRef) error
	// BulkInsert stores records keyed by normalized email; a duplicate key overwrites
	BulkInsert(ref types.SnapshotRef, records []types.StagedIdentity) error
	Count(ref types.SnapshotRef) (int, error)
	List(ref types.SnapshotRef) ([]types.StagedIdentity, error)
	SnapshotExists(ref types.SnapshotRef) (bool, error)
	// Drop removes the snapshot; dropping a missing snapshot is a no-op
	Drop(ref types.SnapshotRef) error

	// AntiJoin returns the records of a whose key is absent from b
	AntiJoin(a, b types.SnapshotRef) ([]types.StagedIdentity, error)
	// DeleteWhereKeyIn deletes from a every record whose key is present in b
	DeleteWhereKeyIn(a, b types.SnapshotRef) (int, error)
	// DeleteKeys deletes the given keys from ref
	DeleteKeys(ref types.SnapshotRef, keys []string) (int, error)
}

// StatsStore persists the stats mapping of a job under its queue name
type StatsStore interface {
	LoadStats(name string) (types.Stats, error)
	SaveStats(name string, stats types.Stats) error
	// UpdateStats runs fn on the current mapping and stores the result in one transaction
	UpdateStats(name string, fn func(types.Stats) error) error
}

// Queue persists checkpoints by queue name
type Queue interface {
	SaveCheckpoint(cp *types.Checkpoint) error
	// LoadCheckpoint returns errors.ErrNoCheckpoint when nothing is queued under name
	LoadCheckpoint(name string) (*types.Checkpoint, error)
	DeleteCheckpoint(name string) error
}

// Store is the full persistence surface of groupsync
type Store interface {
	StagingStore
	StatsStore
	Queue

	Close() error
}
