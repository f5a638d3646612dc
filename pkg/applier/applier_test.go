package applier

import (
	"context"
	"testing"

	"github.com/cuemby/groupsync/pkg/errors"
	"github.com/cuemby/groupsync/pkg/notify"
	"github.com/cuemby/groupsync/pkg/remote"
	"github.com/cuemby/groupsync/pkg/storage"
	"github.com/cuemby/groupsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	msgs []notify.Message
	err  error
}

func (r *recorder) Send(ctx context.Context, msg notify.Message) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

type fixture struct {
	applier *Applier
	remote  *remote.MemoryService
	store   *storage.BoltStore
	notes   *recorder
	batch   Batch
}

func newFixture(t *testing.T, remoteEmails, localEmails []string) *fixture {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := remote.NewMemoryService()
	svc.Seed("staff@x.com", remoteEmails...)

	pair := types.SnapshotsFor("staff@x.com")
	require.NoError(t, store.CreateSnapshot(pair.Remote))
	require.NoError(t, store.CreateSnapshot(pair.Local))
	for _, email := range remoteEmails {
		require.NoError(t, store.BulkInsert(pair.Remote, []types.StagedIdentity{{Email: email}}))
	}
	for _, email := range localEmails {
		require.NoError(t, store.BulkInsert(pair.Local, []types.StagedIdentity{{Email: email}}))
	}

	notes := &recorder{}
	return &fixture{
		applier: New(svc, store, notes, ""),
		remote:  svc,
		store:   store,
		notes:   notes,
		batch:   Batch{GroupID: "staff@x.com", Identifier: "Group1 Staff", Snapshots: pair},
	}
}

func members(emails ...string) []types.StagedIdentity {
	out := make([]types.StagedIdentity, 0, len(emails))
	for _, e := range emails {
		out = append(out, types.StagedIdentity{Email: e})
	}
	return out
}

func TestApplyRemovals(t *testing.T) {
	f := newFixture(t, []string{"a@x.com", "b@x.com"}, []string{"b@x.com"})
	f.batch.Members = members("a@x.com")

	n, err := f.applier.ApplyRemovals(context.Background(), f.batch)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"b@x.com"}, f.remote.Emails("staff@x.com"))

	require.Len(t, f.notes.msgs, 1)
	assert.Equal(t, "Group sync for Group1 Staff", f.notes.msgs[0].Subject)
	assert.Equal(t, "Unsubscribing:\n\na@x.com\n\nAdminister at: https://admin.google.com/ac/groups/staff@x.com", f.notes.msgs[0].Body)

	// Processed records leave the remote snapshot
	staged, err := f.store.List(f.batch.Snapshots.Remote)
	require.NoError(t, err)
	assert.Equal(t, []string{"b@x.com"}, types.Emails(staged))
}

func TestApplyRemovalsEmpty(t *testing.T) {
	f := newFixture(t, []string{"a@x.com"}, []string{"a@x.com"})

	n, err := f.applier.ApplyRemovals(context.Background(), f.batch)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, f.remote.Calls())
	assert.Empty(t, f.notes.msgs)
}

func TestApplyRemovalsRemoteFailure(t *testing.T) {
	f := newFixture(t, []string{"a@x.com"}, nil)
	f.remote.FailOn(remote.OpDelete, errors.New("503 backend error"))
	f.batch.Members = members("a@x.com")

	n, err := f.applier.ApplyRemovals(context.Background(), f.batch)
	assert.Equal(t, 0, n)
	require.ErrorIs(t, err, errors.ErrRemoteAPI)
	assert.Empty(t, f.notes.msgs)

	// Nothing processed, the snapshot still holds the batch
	count, err := f.store.Count(f.batch.Snapshots.Remote)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestApplyAdditionsDropsSnapshots(t *testing.T) {
	f := newFixture(t, []string{"b@x.com"}, []string{"c@x.com"})
	f.batch.Members = members("c@x.com")

	n, err := f.applier.ApplyAdditions(context.Background(), f.batch, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"b@x.com", "c@x.com"}, f.remote.Emails("staff@x.com"))

	calls := f.remote.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, remote.RoleMember, calls[0].Role)

	require.Len(t, f.notes.msgs, 1)
	assert.Contains(t, f.notes.msgs[0].Body, "Subscribing:\n\nc@x.com")

	for _, ref := range []types.SnapshotRef{f.batch.Snapshots.Remote, f.batch.Snapshots.Local} {
		exists, err := f.store.SnapshotExists(ref)
		require.NoError(t, err)
		assert.False(t, exists, ref.String())
	}
}

func TestApplyAdditionsEmptyStillCleansUp(t *testing.T) {
	f := newFixture(t, []string{"b@x.com"}, nil)

	n, err := f.applier.ApplyAdditions(context.Background(), f.batch, "OWNER")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, f.remote.Calls())
	assert.Empty(t, f.notes.msgs)

	exists, err := f.store.SnapshotExists(f.batch.Snapshots.Local)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestApplyAdditionsRemoteFailureKeepsSnapshots(t *testing.T) {
	f := newFixture(t, nil, []string{"c@x.com"})
	f.remote.FailOn(remote.OpAdd, errors.New("quota exceeded"))
	f.batch.Members = members("c@x.com")

	_, err := f.applier.ApplyAdditions(context.Background(), f.batch, remote.RoleMember)
	require.ErrorIs(t, err, errors.ErrRemoteAPI)

	exists, err := f.store.SnapshotExists(f.batch.Snapshots.Local)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNotificationFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, []string{"a@x.com"}, nil)
	f.notes.err = errors.New("smtp down")
	f.batch.Members = members("a@x.com")

	n, err := f.applier.ApplyRemovals(context.Background(), f.batch)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGroupURL(t *testing.T) {
	a := New(nil, nil, nil, "https://groups.example.com/admin/")
	assert.Equal(t, "https://groups.example.com/admin/staff@x.com", a.groupURL("staff@x.com"))

	a = New(nil, nil, nil, "")
	assert.Equal(t, "https://admin.google.com/ac/groups/staff@x.com", a.groupURL("staff@x.com"))
}
