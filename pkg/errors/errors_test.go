package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindsMatchSentinels(t *testing.T) {
	cause := New("boom")

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"staging", NewStagingError("insert", "g/local", cause), ErrStaging},
		{"remote", NewRemoteAPIError("delete-members", "g", 2, cause), ErrRemoteAPI},
		{"resolution", NewResolutionError(7, cause), ErrResolution},
		{"skip", NewSkipError(7, SkipDoNotEmail), ErrSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("step failed: %w", tt.err)
			assert.True(t, Is(wrapped, tt.sentinel))
			assert.False(t, Is(wrapped, ErrNothingToSync))
		})
	}
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := New("connection reset")
	err := &StepError{Title: "Group1 Staff: Removed", Handler: "remove", Err: NewRemoteAPIError("delete-members", "g", 1, cause)}

	assert.True(t, Is(err, cause))
	assert.True(t, Is(err, ErrRemoteAPI))

	var remoteErr *RemoteAPIError
	assert.True(t, As(err, &remoteErr))
	assert.Equal(t, "g", remoteErr.GroupID)
	assert.Contains(t, err.Error(), "Group1 Staff: Removed")
}

func TestStagingErrorMessage(t *testing.T) {
	err := NewStagingError("count", "g/remote", ErrSnapshotNotFound)
	assert.Equal(t, "staging count g/remote: snapshot not found", err.Error())
	assert.True(t, Is(err, ErrSnapshotNotFound))

	err = NewStagingError("open", "", New("locked"))
	assert.Equal(t, "staging open: locked", err.Error())
}
