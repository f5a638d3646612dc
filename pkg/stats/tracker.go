// Package stats tracks the per-group counters of a reconciliation job.
package stats

import (
	"fmt"

	"github.com/cuemby/groupsync/pkg/storage"
	"github.com/cuemby/groupsync/pkg/types"
)

// Tracker is a persisted, keyed accumulator of group counters. Each call
// reads and writes the store, so progress is visible to any inspector
// between steps, including after an abort.
type Tracker struct {
	store storage.StatsStore
	name  string
}

// NewTracker creates a tracker persisting under name
func NewTracker(store storage.StatsStore, name string) *Tracker {
	return &Tracker{store: store, name: name}
}

// Reset empties the stats mapping; called at job start
func (t *Tracker) Reset() error {
	if err := t.store.SaveStats(t.name, types.Stats{}); err != nil {
		return fmt.Errorf("failed to reset stats: %w", err)
	}
	return nil
}

// Merge applies the set fields of update to groupID. Fields are overwritten, not added.
func (t *Tracker) Merge(groupID string, update types.StatsUpdate) error {
	err := t.store.UpdateStats(t.name, func(s types.Stats) error {
		s[groupID] = update.Apply(s[groupID])
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to merge stats for %s: %w", groupID, err)
	}
	return nil
}

// Get returns the whole stats mapping
func (t *Tracker) Get() (types.Stats, error) {
	stats, err := t.store.LoadStats(t.name)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	return stats, nil
}

// Group returns the counters of one group and whether any were recorded
func (t *Tracker) Group(groupID string) (types.GroupStats, bool, error) {
	stats, err := t.Get()
	if err != nil {
		return types.GroupStats{}, false, err
	}
	gs, ok := stats[groupID]
	return gs, ok, nil
}
