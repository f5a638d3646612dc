package reconciler

import (
	"context"
	"fmt"

	"github.com/cuemby/groupsync/pkg/applier"
	"github.com/cuemby/groupsync/pkg/differ"
	"github.com/cuemby/groupsync/pkg/errors"
	"github.com/cuemby/groupsync/pkg/log"
	"github.com/cuemby/groupsync/pkg/metrics"
	"github.com/cuemby/groupsync/pkg/remote"
	"github.com/cuemby/groupsync/pkg/resolver"
	"github.com/cuemby/groupsync/pkg/runner"
	"github.com/cuemby/groupsync/pkg/source"
	"github.com/cuemby/groupsync/pkg/stats"
	"github.com/cuemby/groupsync/pkg/storage"
	"github.com/cuemby/groupsync/pkg/types"
	"github.com/rs/zerolog"
)

// Config holds the collaborators of a Reconciler
type Config struct {
	Staging  storage.StagingStore
	Remote   remote.GroupService
	Local    source.LocalSource
	Mappings source.MappingSource
	Resolver *resolver.Resolver
	Applier  *applier.Applier
	Tracker  *stats.Tracker
	Role     string
}

// Reconciler implements the four steps of a group task
type Reconciler struct {
	staging  storage.StagingStore
	remote   remote.GroupService
	local    source.LocalSource
	mappings source.MappingSource
	resolver *resolver.Resolver
	differ   *differ.Differ
	applier  *applier.Applier
	tracker  *stats.Tracker
	role     string
	logger   zerolog.Logger
}

// New creates a reconciler
func New(cfg Config) *Reconciler {
	role := cfg.Role
	if role == "" {
		role = remote.RoleMember
	}
	return &Reconciler{
		staging:  cfg.Staging,
		remote:   cfg.Remote,
		local:    cfg.Local,
		mappings: cfg.Mappings,
		resolver: cfg.Resolver,
		differ:   differ.New(cfg.Staging),
		applier:  cfg.Applier,
		tracker:  cfg.Tracker,
		role:     role,
		logger:   log.WithComponent("reconciler"),
	}
}

// Register binds the step handlers on r
func (rc *Reconciler) Register(r *runner.Runner) {
	r.Register(runner.StepFetchRemote, rc.FetchRemote)
	r.Register(runner.StepFetchLocal, rc.FetchLocal)
	r.Register(runner.StepRemove, rc.Remove)
	r.Register(runner.StepAdd, rc.Add)
}

// Plan reads every active mapping and plans a job on r.
// A nil checkpoint means nothing qualified.
func (rc *Reconciler) Plan(ctx context.Context, r *runner.Runner) (*types.Checkpoint, error) {
	mappings, err := rc.mappings.Mappings(ctx, source.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	return r.Plan(ctx, mappings)
}

// FetchRemote stages the current members of the remote group
func (rc *Reconciler) FetchRemote(ctx context.Context, sc runner.StepContext) error {
	pair := types.SnapshotsFor(sc.GroupID)
	if err := rc.staging.CreateSnapshot(pair.Remote); err != nil {
		return err
	}

	members, err := rc.remote.Members(ctx, sc.GroupID)
	if err != nil {
		return errors.NewRemoteAPIError(remote.OpMembers, sc.GroupID, 0, err)
	}

	records := make([]types.StagedIdentity, 0, len(members))
	for _, m := range members {
		records = append(records, types.StagedIdentity{
			Email:            m.Email,
			ExternalMemberID: m.ID,
		})
	}
	if err := rc.staging.BulkInsert(pair.Remote, records); err != nil {
		return err
	}

	count, err := rc.staging.Count(pair.Remote)
	if err != nil {
		return err
	}
	logger := log.WithGroupID(log.WithJobID(rc.logger, sc.JobID), sc.GroupID)
	logger.Debug().Int("count", count).Msg("staged remote members")
	return rc.tracker.Merge(sc.GroupID, types.StatsUpdate{RemoteCount: types.Int(count)})
}

// FetchLocal stages the resolved identities of the local groups admitted
// into the task at plan time. Records that resolve to a skip or a resolution
// error are left out without failing the step. When one address is reached
// through several local groups the last one read wins.
func (rc *Reconciler) FetchLocal(ctx context.Context, sc runner.StepContext) error {
	pair := types.SnapshotsFor(sc.GroupID)
	if err := rc.staging.CreateSnapshot(pair.Local); err != nil {
		return err
	}

	localIDs, err := rc.localGroups(ctx, sc)
	if err != nil {
		return err
	}

	logger := log.WithGroupID(log.WithJobID(rc.logger, sc.JobID), sc.GroupID)
	var records []types.StagedIdentity
	for _, localID := range localIDs {
		memberships, err := rc.local.Memberships(ctx, localID)
		if err != nil {
			return fmt.Errorf("failed to read local group %s: %w", localID, err)
		}
		for _, rec := range memberships {
			id, err := rc.resolver.Resolve(ctx, rec)
			if err != nil {
				rc.recordSkip(logger, rec, err)
				continue
			}
			records = append(records, *id)
		}
	}

	if err := rc.staging.BulkInsert(pair.Local, records); err != nil {
		return err
	}

	count, err := rc.staging.Count(pair.Local)
	if err != nil {
		return err
	}
	logger.Debug().Int("count", count).Strs("local_groups", localIDs).Msg("staged local members")
	return rc.tracker.Merge(sc.GroupID, types.StatsUpdate{LocalCount: types.Int(count)})
}

// localGroups returns the local groups of the task. Steps queued without
// them fall back to every active mapping of the remote group.
func (rc *Reconciler) localGroups(ctx context.Context, sc runner.StepContext) ([]string, error) {
	if len(sc.LocalGroupIDs) > 0 {
		return sc.LocalGroupIDs, nil
	}
	mappings, err := rc.mappings.Mappings(ctx, source.Filter{RemoteGroupID: sc.GroupID})
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings for %s: %w", sc.GroupID, err)
	}
	ids := make([]string, 0, len(mappings))
	for _, m := range mappings {
		ids = append(ids, m.LocalGroupID)
	}
	return ids, nil
}

func (rc *Reconciler) recordSkip(logger zerolog.Logger, rec types.MembershipRecord, err error) {
	var skip *errors.SkipError
	if errors.As(err, &skip) {
		metrics.IdentitiesSkipped.WithLabelValues(skip.Reason).Inc()
		logger.Debug().Int64("contact_id", rec.ContactID).Str("reason", skip.Reason).Msg("identity skipped")
		return
	}
	metrics.IdentitiesSkipped.WithLabelValues("error").Inc()
	logger.Warn().Err(err).Int64("contact_id", rec.ContactID).Msg("failed to resolve identity")
}

// Remove deletes the remote members that are absent locally. It must run
// before Add: the remove set is read from both snapshots as fetched, and
// Add consumes the local snapshot.
func (rc *Reconciler) Remove(ctx context.Context, sc runner.StepContext) error {
	pair := types.SnapshotsFor(sc.GroupID)
	toRemove, err := rc.differ.Removals(pair)
	if err != nil {
		return err
	}

	n, err := rc.applier.ApplyRemovals(ctx, applier.Batch{
		GroupID:    sc.GroupID,
		Identifier: sc.Identifier,
		Members:    toRemove,
		Snapshots:  pair,
	})
	if err != nil {
		return err
	}
	return rc.tracker.Merge(sc.GroupID, types.StatsUpdate{Removed: types.Int(n)})
}

// Add subscribes the local identities not yet present remotely, then drops
// both snapshots of the group.
func (rc *Reconciler) Add(ctx context.Context, sc runner.StepContext) error {
	pair := types.SnapshotsFor(sc.GroupID)
	toAdd, err := rc.differ.Additions(pair)
	if err != nil {
		return err
	}

	n, err := rc.applier.ApplyAdditions(ctx, applier.Batch{
		GroupID:    sc.GroupID,
		Identifier: sc.Identifier,
		Members:    toAdd,
		Snapshots:  pair,
	}, rc.role)
	if err != nil {
		return err
	}
	return rc.tracker.Merge(sc.GroupID, types.StatsUpdate{Added: types.Int(n)})
}

// MinMembersQualifier admits a mapping when its local group has at least
// min members. A min of zero or less admits every mapping.
func MinMembersQualifier(local source.LocalSource, min int) runner.Qualifier {
	return func(ctx context.Context, m types.Mapping) (bool, error) {
		if min <= 0 {
			return true, nil
		}
		count, err := local.Count(ctx, m.LocalGroupID)
		if err != nil {
			return false, err
		}
		return count >= min, nil
	}
}
