/*
Package types defines the data model shared by every groupsync package.

A reconciliation run is a Checkpoint: a named, durable queue of Steps. Each
mapped remote group contributes four steps that move its TaskState through

	created -> fetching_remote -> fetching_local -> removing -> adding -> done

with any failure moving it to aborted. The steps stage StagedIdentity records
into two snapshots per group (SnapshotRemote and SnapshotLocal, addressed by
SnapshotRef) and report counters into Stats.

Email addresses are the identity key of a snapshot. Always pass them through
NormalizeEmail before storing or comparing.
*/
package types
