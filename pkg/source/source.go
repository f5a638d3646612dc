// Package source reads the locally authoritative side of a reconciliation:
// which local groups map to which remote group, who is in each local group,
// and the contact details needed to pick an address.
package source

import (
	"context"

	"github.com/cuemby/groupsync/pkg/types"
)

// LocalSource enumerates the memberships of local groups
type LocalSource interface {
	Memberships(ctx context.Context, localGroupID string) ([]types.MembershipRecord, error)
	Count(ctx context.Context, localGroupID string) (int, error)
}

// ContactLookup returns a contact with its email addresses
type ContactLookup interface {
	Contact(ctx context.Context, id int64) (*types.Contact, error)
}

// Filter narrows a mapping query; empty fields match everything
type Filter struct {
	RemoteGroupID string
	LocalGroupID  string
}

// Matches reports whether m satisfies the filter
func (f Filter) Matches(m types.Mapping) bool {
	if f.RemoteGroupID != "" && m.RemoteGroupID != f.RemoteGroupID {
		return false
	}
	if f.LocalGroupID != "" && m.LocalGroupID != f.LocalGroupID {
		return false
	}
	return true
}

// MappingSource returns the active local-to-remote group mappings.
// An empty result is a valid "nothing to do" answer.
type MappingSource interface {
	Mappings(ctx context.Context, filter Filter) ([]types.Mapping, error)
}

// StaticMappings serves a fixed mapping list, usually from configuration.
// Mappings without a remote group are inactive and never returned.
type StaticMappings []types.Mapping

func (s StaticMappings) Mappings(ctx context.Context, filter Filter) ([]types.Mapping, error) {
	var out []types.Mapping
	for _, m := range s {
		if m.RemoteGroupID == "" || m.LocalGroupID == "" {
			continue
		}
		if filter.Matches(m) {
			out = append(out, m)
		}
	}
	return out, nil
}
