/*
Package reconciler implements the steps that mirror local group membership
into a remote group.

The runner queues four steps per remote group; this package supplies their
handlers and registers them by name:

	fetch-remote   CreateSnapshot(remote), stage Members(), stats.remote_count
	fetch-local    CreateSnapshot(local), resolve every mapped membership,
	               stats.local_count
	remove         AntiJoin(remote, local) -> DeleteMembers, stats.removed
	add            DeleteWhereKeyIn(local, remote) -> AddMembers,
	               drop both snapshots, stats.added

# Snapshots

Both snapshots live in the StagingStore under the remote group id, so tasks
for different remote groups never see each other's data. Each fetch step
starts by recreating its snapshot, which discards anything left behind by an
aborted run.

# Ordering

remove always runs before add. The remove set is computed from the two
snapshots exactly as fetched; add then deletes from the local snapshot every
address already subscribed remotely and sends what is left. After add the
local snapshot is consumed and both snapshots are dropped.

# Resolution

fetch-local hands every membership record to the resolver. Suppressed
contacts (deleted, opt-out, do-not-email) and contacts without a usable
address are skipped and counted in groupsync_identities_skipped_total; so are
lookup failures. None of them fail the step. A failure to list a local group
does.

# Usage

	rec := reconciler.New(reconciler.Config{
		Staging:  store,
		Remote:   svc,
		Local:    src,
		Mappings: mappings,
		Resolver: resolver.New(src, "Google"),
		Applier:  applier.New(svc, store, notifier, ""),
		Tracker:  tracker,
	})

	run := runner.New(store, tracker, runner.WithQualifier(
		reconciler.MinMembersQualifier(src, cfg.MinMembers)))
	rec.Register(run)

	cp, err := rec.Plan(ctx, run)
	if cp == nil && err == nil {
		// nothing to sync
	}
	outcome, err := run.Resume(ctx, runner.ModeDrain)
*/
package reconciler
