package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a@x.com", "a@x.com"},
		{"  A@X.Com ", "a@x.com"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeEmail(tt.in))
	}
}

func TestStatsUpdateApply(t *testing.T) {
	base := GroupStats{RemoteCount: 3, LocalCount: 4, Added: 1, Removed: 2}

	got := StatsUpdate{Added: Int(0)}.Apply(base)
	assert.Equal(t, GroupStats{RemoteCount: 3, LocalCount: 4, Added: 0, Removed: 2}, got)

	got = StatsUpdate{}.Apply(base)
	assert.Equal(t, base, got)

	got = StatsUpdate{RemoteCount: Int(9), Removed: Int(5)}.Apply(GroupStats{})
	assert.Equal(t, GroupStats{RemoteCount: 9, Removed: 5}, got)
}

func TestStepArgs(t *testing.T) {
	step := Step{Handler: "add", Args: []string{"staff@x.com", "Group1 Staff"}}
	assert.Equal(t, "staff@x.com", step.GroupID())
	assert.Equal(t, "Group1 Staff", step.Identifier())
	assert.Nil(t, step.LocalGroupIDs())

	step.Args = append(step.Args, "2", "3")
	assert.Equal(t, []string{"2", "3"}, step.LocalGroupIDs())

	empty := Step{Handler: "add"}
	assert.Empty(t, empty.GroupID())
	assert.Empty(t, empty.Identifier())
}

func TestSnapshotsFor(t *testing.T) {
	pair := SnapshotsFor("staff@x.com")
	assert.Equal(t, "staff@x.com/remote", pair.Remote.String())
	assert.Equal(t, "staff@x.com/local", pair.Local.String())
}
