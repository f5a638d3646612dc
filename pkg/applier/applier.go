// Package applier sends the computed diff of a group to the remote service
// in single batches and reports each batch.
package applier

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/groupsync/pkg/errors"
	"github.com/cuemby/groupsync/pkg/log"
	"github.com/cuemby/groupsync/pkg/metrics"
	"github.com/cuemby/groupsync/pkg/notify"
	"github.com/cuemby/groupsync/pkg/remote"
	"github.com/cuemby/groupsync/pkg/storage"
	"github.com/cuemby/groupsync/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultAdminURL is the console link added to notifications; %s is the group id
const DefaultAdminURL = "https://admin.google.com/ac/groups/%s"

// Batch is the work of one apply call
type Batch struct {
	GroupID    string
	Identifier string
	Members    []types.StagedIdentity
	Snapshots  types.SnapshotPair
}

// Applier invokes the remote service and keeps the snapshots in step with it
type Applier struct {
	remote   remote.GroupService
	staging  storage.StagingStore
	notifier notify.Notifier
	adminURL string
	logger   zerolog.Logger
}

// New creates an applier. An empty adminURL uses DefaultAdminURL.
func New(svc remote.GroupService, staging storage.StagingStore, notifier notify.Notifier, adminURL string) *Applier {
	if adminURL == "" {
		adminURL = DefaultAdminURL
	}
	return &Applier{
		remote:   svc,
		staging:  staging,
		notifier: notifier,
		adminURL: adminURL,
		logger:   log.WithComponent("applier"),
	}
}

// ApplyRemovals deletes b.Members from the remote group in one call and
// returns the number credited. On a remote failure nothing is credited.
func (a *Applier) ApplyRemovals(ctx context.Context, b Batch) (int, error) {
	if len(b.Members) == 0 {
		return 0, nil
	}
	emails := types.Emails(b.Members)

	if err := a.remote.DeleteMembers(ctx, b.GroupID, emails); err != nil {
		return 0, errors.NewRemoteAPIError(remote.OpDelete, b.GroupID, len(emails), err)
	}
	metrics.MembersRemoved.WithLabelValues(b.GroupID).Add(float64(len(emails)))
	a.logger.Info().Str("group_id", b.GroupID).Strs("members", emails).Msg("removed members")

	a.notify(ctx, b, "Unsubscribing:", emails)

	if _, err := a.staging.DeleteKeys(b.Snapshots.Remote, emails); err != nil {
		return 0, err
	}
	return len(emails), nil
}

// ApplyAdditions adds b.Members to the remote group with role in one call.
// After success both snapshots of the group are dropped; this is the
// cleanup point of the group task.
func (a *Applier) ApplyAdditions(ctx context.Context, b Batch, role string) (int, error) {
	if role == "" {
		role = remote.RoleMember
	}
	emails := types.Emails(b.Members)

	if len(emails) > 0 {
		if err := a.remote.AddMembers(ctx, b.GroupID, emails, role); err != nil {
			return 0, errors.NewRemoteAPIError(remote.OpAdd, b.GroupID, len(emails), err)
		}
		metrics.MembersAdded.WithLabelValues(b.GroupID).Add(float64(len(emails)))
		a.logger.Info().Str("group_id", b.GroupID).Str("role", role).Strs("members", emails).Msg("added members")

		a.notify(ctx, b, "Subscribing:", emails)

		if _, err := a.staging.DeleteKeys(b.Snapshots.Local, emails); err != nil {
			return 0, err
		}
	}

	if err := a.staging.Drop(b.Snapshots.Remote); err != nil {
		return 0, err
	}
	if err := a.staging.Drop(b.Snapshots.Local); err != nil {
		return 0, err
	}
	return len(emails), nil
}

// notify never fails the batch
func (a *Applier) notify(ctx context.Context, b Batch, heading string, emails []string) {
	msg := notify.Message{
		Subject: fmt.Sprintf("Group sync for %s", b.Identifier),
		Body: fmt.Sprintf("%s\n\n%s\n\nAdminister at: %s",
			heading, strings.Join(emails, "\n"), a.groupURL(b.GroupID)),
	}
	if err := a.notifier.Send(ctx, msg); err != nil {
		metrics.NotificationsFailed.Inc()
		a.logger.Warn().Err(err).Str("group_id", b.GroupID).Msg("failed to send batch notification")
	}
}

func (a *Applier) groupURL(groupID string) string {
	if strings.Contains(a.adminURL, "%s") {
		return fmt.Sprintf(a.adminURL, groupID)
	}
	return strings.TrimSuffix(a.adminURL, "/") + "/" + groupID
}
