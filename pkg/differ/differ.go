// Package differ computes the add and remove sets between the two staged
// snapshots of a group.
package differ

import (
	"github.com/cuemby/groupsync/pkg/storage"
	"github.com/cuemby/groupsync/pkg/types"
)

// Result is the diff of one group. It is computed and consumed within a step.
type Result struct {
	ToRemove []types.StagedIdentity
	ToAdd    []types.StagedIdentity
}

// Differ runs set operations against a StagingStore
type Differ struct {
	staging storage.StagingStore
}

// New creates a differ over staging
func New(staging storage.StagingStore) *Differ {
	return &Differ{staging: staging}
}

// Removals returns the remote records whose key is absent locally. It only reads.
func (d *Differ) Removals(pair types.SnapshotPair) ([]types.StagedIdentity, error) {
	return d.staging.AntiJoin(pair.Remote, pair.Local)
}

// Additions deletes from the local snapshot every key already present
// remotely and returns what is left. The local snapshot is consumed: after
// this call it holds exactly the add set, and Removals on the same pair would
// report every already-subscribed local member as well. Call Removals for the
// pair before Additions, never after.
func (d *Differ) Additions(pair types.SnapshotPair) ([]types.StagedIdentity, error) {
	if _, err := d.staging.DeleteWhereKeyIn(pair.Local, pair.Remote); err != nil {
		return nil, err
	}
	return d.staging.List(pair.Local)
}

// Diff computes both sets. Ordering matters: the remove set must be read
// from the unmodified pair, before the add pre-filter mutates the local side.
func (d *Differ) Diff(pair types.SnapshotPair) (*Result, error) {
	toRemove, err := d.Removals(pair)
	if err != nil {
		return nil, err
	}
	toAdd, err := d.Additions(pair)
	if err != nil {
		return nil, err
	}
	return &Result{ToRemove: toRemove, ToAdd: toAdd}, nil
}
