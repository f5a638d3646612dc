// Package errors provides the error kinds of the groupsync pipeline.
// Every typed error matches its sentinel through errors.Is, so callers can
// tell a fatal staging or remote failure from a per-record skip.
package errors

import (
	"errors"
	"fmt"
)

// Re-exported so callers need a single errors import
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

var (
	// ErrStaging indicates a snapshot create/insert/read/drop failure
	ErrStaging = errors.New("staging failure")

	// ErrSnapshotNotFound indicates a read of a snapshot that was never created or already dropped
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrRemoteAPI indicates a failed call to the remote group service
	ErrRemoteAPI = errors.New("remote api failure")

	// ErrResolution indicates an unexpected failure while resolving an identity
	ErrResolution = errors.New("identity resolution failure")

	// ErrSkipped indicates a membership record excluded by policy
	ErrSkipped = errors.New("identity skipped")

	// ErrNothingToSync indicates that no mapping qualified for a job
	ErrNothingToSync = errors.New("nothing to sync")

	// ErrNoCheckpoint indicates that no job is queued under the requested name
	ErrNoCheckpoint = errors.New("no checkpoint")

	// ErrUnknownStep indicates a queued step whose handler is not registered
	ErrUnknownStep = errors.New("unknown step handler")
)

// StagingError wraps a failing StagingStore operation
type StagingError struct {
	Op       string
	Snapshot string
	Err      error
}

// Error implements the error interface
func (e *StagingError) Error() string {
	if e.Snapshot != "" {
		return fmt.Sprintf("staging %s %s: %v", e.Op, e.Snapshot, e.Err)
	}
	return fmt.Sprintf("staging %s: %v", e.Op, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *StagingError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *StagingError) Is(target error) bool {
	return target == ErrStaging
}

// NewStagingError creates a new StagingError
func NewStagingError(op, snapshot string, err error) *StagingError {
	return &StagingError{Op: op, Snapshot: snapshot, Err: err}
}

// RemoteAPIError represents a failed batch call to the remote group service.
// Nothing in the batch is credited when this is returned.
type RemoteAPIError struct {
	Op      string
	GroupID string
	Members int
	Err     error
}

// Error implements the error interface
func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("remote %s on group %s (%d members): %v", e.Op, e.GroupID, e.Members, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *RemoteAPIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *RemoteAPIError) Is(target error) bool {
	return target == ErrRemoteAPI
}

// NewRemoteAPIError creates a new RemoteAPIError
func NewRemoteAPIError(op, groupID string, members int, err error) *RemoteAPIError {
	return &RemoteAPIError{Op: op, GroupID: groupID, Members: members, Err: err}
}

// ResolutionError represents a lookup failure for one membership record
type ResolutionError struct {
	ContactID int64
	Err       error
}

// Error implements the error interface
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve contact %d: %v", e.ContactID, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolution
}

// NewResolutionError creates a new ResolutionError
func NewResolutionError(contactID int64, err error) *ResolutionError {
	return &ResolutionError{ContactID: contactID, Err: err}
}

// Skip reasons reported by the identity resolver
const (
	SkipDeleted    = "deleted"
	SkipOptOut     = "opt_out"
	SkipDoNotEmail = "do_not_email"
	SkipNoEmail    = "no_email"
)

// SkipError reports a membership record excluded by suppression or address policy
type SkipError struct {
	ContactID int64
	Reason    string
}

// Error implements the error interface
func (e *SkipError) Error() string {
	return fmt.Sprintf("contact %d skipped: %s", e.ContactID, e.Reason)
}

// Is implements errors.Is support
func (e *SkipError) Is(target error) bool {
	return target == ErrSkipped
}

// NewSkipError creates a new SkipError
func NewSkipError(contactID int64, reason string) *SkipError {
	return &SkipError{ContactID: contactID, Reason: reason}
}

// StepError reports the step that aborted a job
type StepError struct {
	Title   string
	Handler string
	Err     error
}

// Error implements the error interface
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Title, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *StepError) Unwrap() error {
	return e.Err
}
