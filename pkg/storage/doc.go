/*
Package storage provides BoltDB-backed persistence for groupsync jobs.

A single BoltStore file (<dataDir>/groupsync.db) carries everything a job needs
to survive between invocations:

	┌──────────────────── groupsync.db ─────────────────────┐
	│                                                        │
	│  snapshots/                                            │
	│    <remote group id>/remote   email -> StagedIdentity  │
	│    <remote group id>/local    email -> StagedIdentity  │
	│                                                        │
	│  stats/                                                │
	│    <queue name>               JSON types.Stats         │
	│                                                        │
	│  queues/                                               │
	│    <queue name>               JSON types.Checkpoint    │
	└────────────────────────────────────────────────────────┘

Snapshots are nested buckets so that CreateSnapshot and Drop are a single
bucket delete, and AntiJoin and DeleteWhereKeyIn run inside one transaction
with both sides visible. Keys are normalized email addresses, which makes the
email the only identity key of a snapshot: inserting a duplicate overwrites.

Every method is its own bbolt transaction. There is no isolation across calls;
a job assumes it is the only writer of its queue name and snapshot scopes.

Snapshot failures are returned as *errors.StagingError. Reading a snapshot that
does not exist wraps errors.ErrSnapshotNotFound.

MemoryQueue implements Queue without a database for tests and dry runs.
*/
package storage
