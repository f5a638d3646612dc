package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groupsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "gg-sync", cfg.QueueName)
	assert.Equal(t, "MEMBER", cfg.Role)
	assert.Equal(t, "Google", cfg.SyncLocationType)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Mappings)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/groupsync
min_members: 3
log:
  level: debug
  json: true
notify:
  smtp_addr: mail.example.com:25
  from: sync@example.com
  to: [admin@example.com]
mappings:
  - local_group_id: "2"
    remote_group_id: staff@x.com
    label: Staff
  - local_group_id: "5"
    label: Unmapped
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/groupsync", cfg.DataDir)
	assert.Equal(t, 3, cfg.MinMembers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, []string{"admin@example.com"}, cfg.Notify.To)
	require.Len(t, cfg.Mappings, 2)
	assert.Equal(t, "staff@x.com", cfg.Mappings[0].RemoteGroupID)
	assert.Equal(t, "Staff", cfg.Mappings[0].Label)
	assert.Empty(t, cfg.Mappings[1].RemoteGroupID)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestPrecedence(t *testing.T) {
	path := writeConfig(t, "queue_name: from-file\nrole: OWNER\nmin_members: 2\n")
	t.Setenv("GROUPSYNC_ROLE", "MANAGER")
	t.Setenv("GROUPSYNC_MIN_MEMBERS", "4")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("min-members", 0, "")
	flags.String("queue-name", "", "")
	require.NoError(t, flags.Parse([]string{"--min-members=7"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.QueueName, "unchanged flags do not override")
	assert.Equal(t, "MANAGER", cfg.Role, "environment overrides file")
	assert.Equal(t, 7, cfg.MinMembers, "changed flags override environment")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"negative min", "min_members: -1\n", "min_members"},
		{"empty queue", "queue_name: \"\"\n", "queue_name"},
		{"mapping without local group", "mappings:\n  - remote_group_id: staff@x.com\n", "local_group_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
