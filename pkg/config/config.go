// Package config loads groupsync settings from defaults, an optional YAML
// file and GROUPSYNC_* environment variables, in increasing precedence.
// Command-line flags are bound on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cuemby/groupsync/pkg/types"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "GROUPSYNC"

// Config holds the settings of one groupsync invocation
type Config struct {
	DataDir          string          `mapstructure:"data_dir"`
	QueueName        string          `mapstructure:"queue_name"`
	Role             string          `mapstructure:"role"`
	MinMembers       int             `mapstructure:"min_members"`
	SyncLocationType string          `mapstructure:"sync_location_type"`
	EndURL           string          `mapstructure:"end_url"`
	LocalSource      string          `mapstructure:"local_source"`
	RemoteDirectory  string          `mapstructure:"remote_directory"`
	MetricsAddr      string          `mapstructure:"metrics_addr"`
	Log              LogConfig       `mapstructure:"log"`
	Notify           NotifyConfig    `mapstructure:"notify"`
	Mappings         []types.Mapping `mapstructure:"mappings"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// NotifyConfig holds notification settings. Mail is sent only when
// SMTPAddr is set; batches are always logged.
type NotifyConfig struct {
	SMTPAddr string   `mapstructure:"smtp_addr"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	AdminURL string   `mapstructure:"admin_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./groupsync-data")
	v.SetDefault("queue_name", "gg-sync")
	v.SetDefault("role", "MEMBER")
	v.SetDefault("min_members", 0)
	v.SetDefault("sync_location_type", "Google")
	v.SetDefault("end_url", "")
	v.SetDefault("local_source", "")
	v.SetDefault("remote_directory", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("notify.smtp_addr", "")
	v.SetDefault("notify.from", "")
	v.SetDefault("notify.to", []string{})
	v.SetDefault("notify.username", "")
	v.SetDefault("notify.password", "")
	v.SetDefault("notify.admin_url", "")
}

// Load reads the configuration. An empty path searches ./groupsync.yaml and
// $HOME/.groupsync/groupsync.yaml and tolerates neither existing; an explicit path
// must exist. flags may be nil; flags the user changed override every other
// source.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("groupsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.groupsync")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	if flags != nil {
		var bindErr error
		flags.Visit(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if ok && bindErr == nil {
				bindErr = v.BindPFlag(key, f)
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// flagKeys maps CLI flag names to configuration keys
var flagKeys = map[string]string{
	"data-dir":           "data_dir",
	"queue-name":         "queue_name",
	"role":               "role",
	"min-members":        "min_members",
	"sync-location-type": "sync_location_type",
	"end-url":            "end_url",
	"local-source":       "local_source",
	"remote-directory":   "remote_directory",
	"metrics-addr":       "metrics_addr",
	"log-level":          "log.level",
	"log-json":           "log.json",
	"admin-url":          "notify.admin_url",
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.QueueName == "" {
		return fmt.Errorf("queue_name is required")
	}
	if c.MinMembers < 0 {
		return fmt.Errorf("min_members must not be negative, got %d", c.MinMembers)
	}
	for i, m := range c.Mappings {
		if m.LocalGroupID == "" {
			return fmt.Errorf("mappings[%d]: local_group_id is required", i)
		}
	}
	return nil
}
