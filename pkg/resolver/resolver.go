// Package resolver turns local membership records into staged identities.
package resolver

import (
	"context"

	"github.com/cuemby/groupsync/pkg/errors"
	"github.com/cuemby/groupsync/pkg/source"
	"github.com/cuemby/groupsync/pkg/types"
)

// DefaultSyncLocationType is the address type reserved for the remote service
const DefaultSyncLocationType = "Google"

// Resolver applies suppression and address-channel preference to one
// membership record at a time.
type Resolver struct {
	contacts     source.ContactLookup
	locationType string
}

// New creates a resolver. An empty locationType uses DefaultSyncLocationType.
func New(contacts source.ContactLookup, locationType string) *Resolver {
	if locationType == "" {
		locationType = DefaultSyncLocationType
	}
	return &Resolver{contacts: contacts, locationType: locationType}
}

// Resolve returns the identity to stage for rec. Excluded records return a
// *errors.SkipError; lookup failures return a *errors.ResolutionError. Both are
// per-record outcomes and never fatal to a job.
func (r *Resolver) Resolve(ctx context.Context, rec types.MembershipRecord) (*types.StagedIdentity, error) {
	contact, err := r.contacts.Contact(ctx, rec.ContactID)
	if err != nil {
		return nil, errors.NewResolutionError(rec.ContactID, err)
	}

	switch {
	case contact.IsDeleted:
		return nil, errors.NewSkipError(contact.ID, errors.SkipDeleted)
	case contact.IsOptOut:
		return nil, errors.NewSkipError(contact.ID, errors.SkipOptOut)
	case contact.DoNotEmail:
		return nil, errors.NewSkipError(contact.ID, errors.SkipDoNotEmail)
	}

	email := r.selectEmail(contact.Emails)
	if email == nil {
		return nil, errors.NewSkipError(contact.ID, errors.SkipNoEmail)
	}

	return &types.StagedIdentity{
		Email:       types.NormalizeEmail(email.Address),
		ContactID:   contact.ID,
		EmailID:     email.ID,
		FirstName:   contact.FirstName,
		LastName:    contact.LastName,
		DisplayName: contact.DisplayName(),
	}, nil
}

// selectEmail prefers the sync-channel address, then the primary one.
// Addresses on hold or blank are never used.
func (r *Resolver) selectEmail(emails []types.Email) *types.Email {
	var primary *types.Email
	for i := range emails {
		e := &emails[i]
		if e.OnHold || types.NormalizeEmail(e.Address) == "" {
			continue
		}
		if e.LocationType == r.locationType {
			return e
		}
		if e.IsPrimary && primary == nil {
			primary = e
		}
	}
	return primary
}
