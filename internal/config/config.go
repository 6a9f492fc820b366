// Package config loads loom's project configuration from .loom/config.yaml
// with LOOM_* environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loomworks/loom/internal/lifecycle"
	"github.com/loomworks/loom/internal/tracker"
)

// DirName is the per-project data directory.
const DirName = ".loom"

// TrackerConfig is the config.yaml shape for one tracker connection.
// Tokens never live in the file; TokenEnv names the environment variable
// that carries the credential.
type TrackerConfig struct {
	Kind         string            `mapstructure:"kind"`
	Owner        string            `mapstructure:"owner"`
	Repo         string            `mapstructure:"repo"`
	Organization string            `mapstructure:"organization"`
	Project      string            `mapstructure:"project"`
	BaseURL      string            `mapstructure:"base-url"`
	TokenEnv     string            `mapstructure:"token-env"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	StatusMap    map[string]string `mapstructure:"status-map"`
}

// Config is the resolved project configuration.
type Config struct {
	// Root is the directory containing the .loom directory.
	Root string

	Strategy tracker.Strategy

	WIPLimit int

	Staleness lifecycle.StalenessPolicy

	Trackers map[string]TrackerConfig
}

// Dir returns the project's .loom directory.
func (c *Config) Dir() string {
	return filepath.Join(c.Root, DirName)
}

// TrackerFor resolves the named tracker connection into an adapter. The
// token is read from the environment at call time, falling back to
// LOOM_<NAME>_TOKEN when token-env is unset.
func (c *Config) TrackerFor(name string) (tracker.Adapter, error) {
	tc, ok := c.Trackers[name]
	if !ok {
		return nil, fmt.Errorf("tracker %q is not configured (configured: %v)", name, c.trackerNames())
	}

	tokenEnv := tc.TokenEnv
	if tokenEnv == "" {
		tokenEnv = "LOOM_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_TOKEN"
	}

	return tracker.New(tc.Kind, tracker.AdapterConfig{
		Token:        os.Getenv(tokenEnv),
		BaseURL:      tc.BaseURL,
		Timeout:      tc.Timeout,
		Owner:        tc.Owner,
		Repo:         tc.Repo,
		Organization: tc.Organization,
		Project:      tc.Project,
		StatusMap:    tc.StatusMap,
	})
}

func (c *Config) trackerNames() []string {
	names := make([]string, 0, len(c.Trackers))
	for name := range c.Trackers {
		names = append(names, name)
	}
	return names
}

// FindRoot walks up from start looking for a .loom directory. Stops at the
// filesystem root and at the system temp directory, which collects stray
// data dirs from tests.
func FindRoot(start string) (string, error) {
	tempDir := filepath.Clean(os.TempDir())
	for dir := filepath.Clean(start); ; dir = filepath.Dir(dir) {
		if dir == tempDir {
			break
		}
		if info, err := os.Stat(filepath.Join(dir, DirName)); err == nil && info.IsDir() {
			return dir, nil
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}
	return "", fmt.Errorf("no %s directory found in %s or any parent (run 'loom init' first)", DirName, start)
}

// Load reads .loom/config.yaml under root, applies defaults and LOOM_*
// environment overrides, and validates the result. A missing config file is
// fine; everything has a default.
func Load(root string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(filepath.Join(root, DirName, "config.yaml"))

	v.SetDefault("strategy", string(tracker.DefaultStrategy))
	v.SetDefault("wip.limit", 0)
	v.SetDefault("staleness.paused-after-days", 0)
	v.SetDefault("staleness.active-after-days", 0)
	v.SetDefault("staleness.experiment-abandon-after-days", 0)

	v.SetEnvPrefix("LOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// A missing config file means all defaults; a malformed one is an error.
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	strategy, err := tracker.ParseStrategy(v.GetString("strategy"))
	if err != nil {
		return nil, fmt.Errorf("config strategy: %w", err)
	}

	wipLimit := v.GetInt("wip.limit")
	if wipLimit < 0 {
		return nil, fmt.Errorf("config wip.limit: %d is negative", wipLimit)
	}

	var trackers map[string]TrackerConfig
	if err := v.UnmarshalKey("trackers", &trackers); err != nil {
		return nil, fmt.Errorf("config trackers: %w", err)
	}
	for name, tc := range trackers {
		if tc.Kind == "" {
			return nil, fmt.Errorf("config tracker %q: kind is required", name)
		}
		if !tracker.IsRegistered(tc.Kind) {
			return nil, fmt.Errorf("config tracker %q: unknown kind %q (available: %v)", name, tc.Kind, tracker.List())
		}
	}

	return &Config{
		Root:     root,
		Strategy: strategy,
		WIPLimit: wipLimit,
		Staleness: lifecycle.StalenessPolicy{
			PausedAfter:            days(v.GetInt("staleness.paused-after-days")),
			ActiveAfter:            days(v.GetInt("staleness.active-after-days")),
			ExperimentAbandonAfter: days(v.GetInt("staleness.experiment-abandon-after-days")),
		},
		Trackers: trackers,
	}, nil
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
