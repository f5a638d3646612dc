package types

import (
	"strings"
	"time"
)

// SnapshotKind identifies which side of a reconciliation a snapshot stages
type SnapshotKind string

const (
	SnapshotRemote SnapshotKind = "remote"
	SnapshotLocal  SnapshotKind = "local"
)

// SnapshotRef names one staged snapshot. Scope is the remote group id of
// the task that owns it.
type SnapshotRef struct {
	Scope string
	Kind  SnapshotKind
}

// String returns the storage name of the snapshot
func (r SnapshotRef) String() string {
	return r.Scope + "/" + string(r.Kind)
}

// SnapshotPair holds both snapshots of one group task
type SnapshotPair struct {
	Remote SnapshotRef
	Local  SnapshotRef
}

// SnapshotsFor returns the snapshot pair scoped to a remote group
func SnapshotsFor(groupID string) SnapshotPair {
	return SnapshotPair{
		Remote: SnapshotRef{Scope: groupID, Kind: SnapshotRemote},
		Local:  SnapshotRef{Scope: groupID, Kind: SnapshotLocal},
	}
}

// StagedIdentity is one member record inside a snapshot.
// Email is the only identity key.
type StagedIdentity struct {
	Email            string `json:"email"`
	ExternalMemberID string `json:"external_member_id,omitempty"` // remote snapshot only
	ContactID        int64  `json:"contact_id,omitempty"`
	EmailID          int64  `json:"email_id,omitempty"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	DisplayName      string `json:"display_name,omitempty"` // local snapshot only
}

// NormalizeEmail returns the canonical key form of an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Emails returns the keys of a list of identities in order
func Emails(identities []StagedIdentity) []string {
	emails := make([]string, 0, len(identities))
	for _, id := range identities {
		emails = append(emails, id.Email)
	}
	return emails
}

// Mapping binds a local group to the remote group it is mirrored into
type Mapping struct {
	LocalGroupID  string `json:"local_group_id" yaml:"local_group_id" mapstructure:"local_group_id"`
	RemoteGroupID string `json:"remote_group_id" yaml:"remote_group_id" mapstructure:"remote_group_id"`
	Label         string `json:"label" yaml:"label" mapstructure:"label"`
}

// RemoteMember is a member as reported by the remote group service
type RemoteMember struct {
	ID    string `json:"id" yaml:"id"`
	Email string `json:"email" yaml:"email"`
	Role  string `json:"role,omitempty" yaml:"role,omitempty"`
}

// Contact is a person in the local system of record
type Contact struct {
	ID         int64   `yaml:"id"`
	FirstName  string  `yaml:"first_name"`
	LastName   string  `yaml:"last_name"`
	IsDeleted  bool    `yaml:"is_deleted"`
	IsOptOut   bool    `yaml:"is_opt_out"`
	DoNotEmail bool    `yaml:"do_not_email"`
	Emails     []Email `yaml:"emails"`
}

// DisplayName joins the name parts that are set
func (c *Contact) DisplayName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Email is one address of a contact
type Email struct {
	ID           int64  `yaml:"id"`
	Address      string `yaml:"address"`
	LocationType string `yaml:"location_type"`
	IsPrimary    bool   `yaml:"primary"`
	OnHold       bool   `yaml:"on_hold"`
}

// MembershipRecord is a raw local group membership
type MembershipRecord struct {
	LocalGroupID string
	ContactID    int64
}

// GroupStats holds the counters reported for one remote group
type GroupStats struct {
	RemoteCount int `json:"remote_count"`
	LocalCount  int `json:"local_count"`
	Added       int `json:"added"`
	Removed     int `json:"removed"`
}

// Stats maps remote group id to its counters
type Stats map[string]GroupStats

// StatsUpdate is a partial write; nil fields are left untouched
type StatsUpdate struct {
	RemoteCount *int
	LocalCount  *int
	Added       *int
	Removed     *int
}

// Apply writes the set fields of u onto s
func (u StatsUpdate) Apply(s GroupStats) GroupStats {
	if u.RemoteCount != nil {
		s.RemoteCount = *u.RemoteCount
	}
	if u.LocalCount != nil {
		s.LocalCount = *u.LocalCount
	}
	if u.Added != nil {
		s.Added = *u.Added
	}
	if u.Removed != nil {
		s.Removed = *u.Removed
	}
	return s
}

// Int returns a pointer to n, for building a StatsUpdate
func Int(n int) *int {
	return &n
}

// TaskState is the lifecycle state of one group task
type TaskState string

const (
	TaskStateCreated        TaskState = "created"
	TaskStateFetchingRemote TaskState = "fetching_remote"
	TaskStateFetchingLocal  TaskState = "fetching_local"
	TaskStateRemoving       TaskState = "removing"
	TaskStateAdding         TaskState = "adding"
	TaskStateDone           TaskState = "done"
	TaskStateAborted        TaskState = "aborted"
)

// JobStatus is the lifecycle state of a checkpointed job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSuspended JobStatus = "suspended" // yielded or interrupted between steps
	JobStatusDone      JobStatus = "done"
	JobStatusAborted   JobStatus = "aborted"
)

// Step is one queued unit of work. Args are positional: remote group id,
// identifier, then the local group ids admitted into the task.
type Step struct {
	Handler string    `json:"handler"`
	Args    []string  `json:"args"`
	Title   string    `json:"title"`
	State   TaskState `json:"state"`
	Final   bool      `json:"final,omitempty"` // last step of its group task
}

// GroupID returns the remote group id argument of the step
func (s Step) GroupID() string {
	if len(s.Args) > 0 {
		return s.Args[0]
	}
	return ""
}

// Identifier returns the human identifier argument of the step
func (s Step) Identifier() string {
	if len(s.Args) > 1 {
		return s.Args[1]
	}
	return ""
}

// LocalGroupIDs returns the local group id arguments of the step
func (s Step) LocalGroupIDs() []string {
	if len(s.Args) > 2 {
		return s.Args[2:]
	}
	return nil
}

// Checkpoint is the durable queue of a job's remaining steps
type Checkpoint struct {
	Name       string               `json:"name"`
	JobID      string               `json:"job_id"`
	Title      string               `json:"title"`
	Steps      []Step               `json:"steps"`
	States     map[string]TaskState `json:"states"`
	Status     JobStatus            `json:"status"`
	FailedStep string               `json:"failed_step,omitempty"`
	LastError  string               `json:"last_error,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}
