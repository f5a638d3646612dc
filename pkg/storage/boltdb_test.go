package storage

import (
	"testing"
	"time"

	gserrors "github.com/cuemby/groupsync/pkg/errors"
	"github.com/cuemby/groupsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func identities(emails ...string) []types.StagedIdentity {
	records := make([]types.StagedIdentity, 0, len(emails))
	for _, email := range emails {
		records = append(records, types.StagedIdentity{Email: email})
	}
	return records
}

func TestCreateSnapshotReplacesStaleData(t *testing.T) {
	store := newTestStore(t)
	ref := types.SnapshotRef{Scope: "staff@x.com", Kind: types.SnapshotRemote}

	require.NoError(t, store.CreateSnapshot(ref))
	require.NoError(t, store.BulkInsert(ref, identities("a@x.com", "b@x.com")))

	// A second create, as after an aborted run, yields an empty snapshot
	require.NoError(t, store.CreateSnapshot(ref))
	count, err := store.Count(ref)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestBulkInsertCollapsesDuplicateEmails(t *testing.T) {
	store := newTestStore(t)
	ref := types.SnapshotRef{Scope: "staff@x.com", Kind: types.SnapshotLocal}
	require.NoError(t, store.CreateSnapshot(ref))

	err := store.BulkInsert(ref, []types.StagedIdentity{
		{Email: "A@x.com", ContactID: 1},
		{Email: "a@x.com ", ContactID: 2},
		{Email: "", ContactID: 3},
		{Email: "b@x.com", ContactID: 4},
	})
	require.NoError(t, err)

	records, err := store.List(ref)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a@x.com", records[0].Email)
	assert.Equal(t, int64(2), records[0].ContactID, "last write wins on duplicate keys")
	assert.Equal(t, "b@x.com", records[1].Email)
}

func TestMissingSnapshot(t *testing.T) {
	store := newTestStore(t)
	ref := types.SnapshotRef{Scope: "nobody@x.com", Kind: types.SnapshotLocal}

	_, err := store.Count(ref)
	assert.ErrorIs(t, err, gserrors.ErrStaging)
	assert.ErrorIs(t, err, gserrors.ErrSnapshotNotFound)

	err = store.BulkInsert(ref, identities("a@x.com"))
	assert.ErrorIs(t, err, gserrors.ErrSnapshotNotFound)

	exists, err := store.SnapshotExists(ref)
	require.NoError(t, err)
	assert.False(t, exists)

	// Dropping a missing snapshot is a no-op
	assert.NoError(t, store.Drop(ref))
}

func TestDropRemovesSnapshot(t *testing.T) {
	store := newTestStore(t)
	ref := types.SnapshotRef{Scope: "staff@x.com", Kind: types.SnapshotRemote}
	require.NoError(t, store.CreateSnapshot(ref))
	require.NoError(t, store.BulkInsert(ref, identities("a@x.com")))

	require.NoError(t, store.Drop(ref))

	exists, err := store.SnapshotExists(ref)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAntiJoinAndDeleteWhereKeyIn(t *testing.T) {
	store := newTestStore(t)
	pair := types.SnapshotsFor("staff@x.com")
	require.NoError(t, store.CreateSnapshot(pair.Remote))
	require.NoError(t, store.CreateSnapshot(pair.Local))
	require.NoError(t, store.BulkInsert(pair.Remote, identities("a@x.com", "b@x.com")))
	require.NoError(t, store.BulkInsert(pair.Local, identities("b@x.com", "c@x.com")))

	onlyRemote, err := store.AntiJoin(pair.Remote, pair.Local)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com"}, types.Emails(onlyRemote))

	deleted, err := store.DeleteWhereKeyIn(pair.Local, pair.Remote)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	remaining, err := store.List(pair.Local)
	require.NoError(t, err)
	assert.Equal(t, []string{"c@x.com"}, types.Emails(remaining))

	// The remote side is untouched by the pre-filter
	count, err := store.Count(pair.Remote)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSnapshotsAreScoped(t *testing.T) {
	store := newTestStore(t)
	staff := types.SnapshotsFor("staff@x.com")
	board := types.SnapshotsFor("board@x.com")

	require.NoError(t, store.CreateSnapshot(staff.Remote))
	require.NoError(t, store.CreateSnapshot(board.Remote))
	require.NoError(t, store.BulkInsert(staff.Remote, identities("a@x.com")))

	count, err := store.Count(board.Remote)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, store.CreateSnapshot(board.Remote))
	count, err = store.Count(staff.Remote)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteKeys(t *testing.T) {
	store := newTestStore(t)
	ref := types.SnapshotRef{Scope: "staff@x.com", Kind: types.SnapshotRemote}
	require.NoError(t, store.CreateSnapshot(ref))
	require.NoError(t, store.BulkInsert(ref, identities("a@x.com", "b@x.com")))

	deleted, err := store.DeleteKeys(ref, []string{"A@x.com", "missing@x.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	records, err := store.List(ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"b@x.com"}, types.Emails(records))
}

func TestStatsPersistence(t *testing.T) {
	store := newTestStore(t)

	stats, err := store.LoadStats("gg-sync")
	require.NoError(t, err)
	assert.Empty(t, stats)

	require.NoError(t, store.UpdateStats("gg-sync", func(s types.Stats) error {
		s["staff@x.com"] = types.GroupStats{RemoteCount: 2}
		return nil
	}))
	require.NoError(t, store.UpdateStats("gg-sync", func(s types.Stats) error {
		gs := s["staff@x.com"]
		gs.Added = 1
		s["staff@x.com"] = gs
		return nil
	}))

	stats, err = store.LoadStats("gg-sync")
	require.NoError(t, err)
	assert.Equal(t, types.GroupStats{RemoteCount: 2, Added: 1}, stats["staff@x.com"])

	require.NoError(t, store.SaveStats("gg-sync", nil))
	stats, err = store.LoadStats("gg-sync")
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestCheckpointRoundTrip(t *testing.T) {
	queues := map[string]Queue{
		"bolt":   newTestStore(t),
		"memory": NewMemoryQueue(),
	}

	for name, q := range queues {
		t.Run(name, func(t *testing.T) {
			_, err := q.LoadCheckpoint("gg-sync")
			assert.ErrorIs(t, err, gserrors.ErrNoCheckpoint)

			cp := &types.Checkpoint{
				Name:      "gg-sync",
				JobID:     "job-1",
				Steps:     []types.Step{{Handler: "fetch-remote", Args: []string{"staff@x.com", "Group1 Staff"}}},
				States:    map[string]types.TaskState{"staff@x.com": types.TaskStateCreated},
				Status:    types.JobStatusPending,
				CreatedAt: time.Now().UTC().Truncate(time.Second),
			}
			require.NoError(t, q.SaveCheckpoint(cp))

			// Mutating the caller's copy does not leak into the queue
			cp.Steps = nil

			loaded, err := q.LoadCheckpoint("gg-sync")
			require.NoError(t, err)
			require.Len(t, loaded.Steps, 1)
			assert.Equal(t, "Group1 Staff", loaded.Steps[0].Identifier())
			assert.Equal(t, types.TaskStateCreated, loaded.States["staff@x.com"])

			require.NoError(t, q.DeleteCheckpoint("gg-sync"))
			_, err = q.LoadCheckpoint("gg-sync")
			assert.ErrorIs(t, err, gserrors.ErrNoCheckpoint)
		})
	}
}
