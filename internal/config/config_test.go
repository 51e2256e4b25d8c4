package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/sysmon/internal/config"
	"codeberg.org/mutker/sysmon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SYSMON_CONFIG", "")

	cfg, err := config.Load(nil)
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, 5.0, cfg.Interval, "Expected default Interval 5.0")
	assert.Equal(t, 5*time.Second, cfg.IntervalDuration())
	assert.Equal(t, time.Second, cfg.CPUWindowDuration())
	assert.Equal(t, 2500*time.Millisecond, cfg.SinkTimeoutDuration())
	assert.False(t, cfg.Verbose)
	assert.True(t, cfg.Console)
	assert.False(t, cfg.Remote.Enabled, "Remote sink must default to off")
	assert.Equal(t, config.ResumeAllow, cfg.Remote.Resume)
	assert.Equal(t, []string{"cpu", "temperature", "gpu", "memory"}, cfg.Providers)
	assert.Equal(t, []string{"drivetemp"}, cfg.Bootstrap.Modules)
	assert.Equal(t, "Linux", cfg.Bootstrap.OSFamily)
	assert.Equal(t, filepath.Join(config.DefaultLogDir, config.DefaultLogFile), cfg.LogPath())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, "sysmon.toml", `
interval = 2.0
cpu_window = 0.5
log_dir = "/tmp/sysmon"
providers = ["cpu", "memory", "load"]

[bootstrap]
modules = ["drivetemp", "nct6775"]

[remote]
enabled = true
url = "http://push.example:9091"
project = "lab"
entity = "team"
run_name = "bench-1"
notes = "overnight"
resume = "never"
`)

	cfg, err := config.Load([]string{"--config", path})
	require.NoError(t, err)

	assert.Equal(t, 2.0, cfg.Interval)
	assert.Equal(t, 500*time.Millisecond, cfg.CPUWindowDuration())
	assert.Equal(t, "/tmp/sysmon/sysmon.log", cfg.LogPath())
	assert.Equal(t, "/tmp/sysmon/remote_state.db", cfg.RemoteStatePath())
	assert.Equal(t, []string{"cpu", "memory", "load"}, cfg.Providers)
	assert.True(t, cfg.ProviderEnabled("load"))
	assert.False(t, cfg.ProviderEnabled("gpu"))
	assert.Equal(t, []string{"drivetemp", "nct6775"}, cfg.Bootstrap.Modules)
	assert.True(t, cfg.Remote.Enabled)
	assert.Equal(t, "lab", cfg.Remote.Project)
	assert.Equal(t, "team", cfg.Remote.Entity)
	assert.Equal(t, "bench-1", cfg.Remote.RunName)
	assert.Equal(t, config.ResumeNever, cfg.Remote.Resume)
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "sysmon.yaml", `
interval: 10
verbose: false
remote:
  enabled: true
  url: http://push.example:9091
  project: lab
`)

	cfg, err := config.Load([]string{
		"--config", path,
		"--interval", "3",
		"--verbose",
		"--log_dir", "/srv/logs",
		"--providers", "cpu,gpu",
		"--no-wandb",
	})
	require.NoError(t, err)

	assert.Equal(t, 3.0, cfg.Interval)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "/srv/logs", cfg.LogDir)
	assert.Equal(t, []string{"cpu", "gpu"}, cfg.Providers)
	assert.False(t, cfg.Remote.Enabled, "--no-wandb must disable the remote sink")
}

func TestRemoteFlagAliases(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{"default off", nil, false},
		{"use-wandb", []string{"--use-wandb"}, true},
		{"remote", []string{"--remote"}, true},
		{"no-remote wins", []string{"--remote", "--no-remote"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SYSMON_REMOTE_URL", "http://push.example:9091")
			t.Setenv("SYSMON_REMOTE_PROJECT", "lab")

			cfg, err := config.Load(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Remote.Enabled)
		})
	}
}

func TestEnvironment(t *testing.T) {
	t.Setenv("SYSMON_INTERVAL", "7.5")
	t.Setenv("SYSMON_LOG_FILE", "/var/tmp/samples.log")

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 7.5, cfg.Interval)
	assert.Equal(t, "/var/tmp/samples.log", cfg.LogPath())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		args func(t *testing.T) []string
		code errors.ErrorCode
	}{
		{
			name: "zero interval",
			args: func(*testing.T) []string { return []string{"--interval", "0"} },
			code: errors.ErrInvalidInterval,
		},
		{
			name: "cpu window longer than interval",
			args: func(*testing.T) []string { return []string{"--interval", "1", "--cpu-window", "2"} },
			code: errors.ErrInvalidConfig,
		},
		{
			name: "unknown provider",
			args: func(*testing.T) []string { return []string{"--providers", "cpu,bogus"} },
			code: errors.ErrInvalidConfig,
		},
		{
			name: "missing explicit config file",
			args: func(t *testing.T) []string {
				return []string{"--config", filepath.Join(t.TempDir(), "absent.toml")}
			},
			code: errors.ErrReadConfig,
		},
		{
			name: "malformed config file",
			args: func(t *testing.T) []string {
				return []string{"--config", writeConfig(t, "bad.toml", "This is not a valid TOML file\n")}
			},
			code: errors.ErrReadConfig,
		},
		{
			name: "remote enabled without url",
			args: func(t *testing.T) []string {
				return []string{"--config", writeConfig(t, "r.toml", "[remote]\nenabled = true\nproject = \"lab\"\n")}
			},
			code: errors.ErrMissingConfig,
		},
		{
			name: "remote enabled without project",
			args: func(t *testing.T) []string {
				return []string{"--config", writeConfig(t, "r.toml", "[remote]\nenabled = true\nurl = \"http://x\"\n")}
			},
			code: errors.ErrMissingConfig,
		},
		{
			name: "bad resume policy",
			args: func(t *testing.T) []string {
				return []string{"--config", writeConfig(t, "r.toml", "[remote]\nenabled = true\nurl = \"http://x\"\nproject = \"p\"\nresume = \"sometimes\"\n")}
			},
			code: errors.ErrInvalidConfig,
		},
		{
			name: "unknown flag",
			args: func(*testing.T) []string { return []string{"--bogus"} },
			code: errors.ErrBindFlags,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(tt.args(t))
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func TestRemoteDisabledSkipsRemoteValidation(t *testing.T) {
	path := writeConfig(t, "r.toml", "[remote]\nenabled = false\nresume = \"sometimes\"\n")

	_, err := config.Load([]string{"--config", path})
	assert.NoError(t, err)
}

func TestDefaultCPUWindowFollowsShortInterval(t *testing.T) {
	t.Setenv("SYSMON_CONFIG", "")

	cfg, err := config.Load([]string{"--interval", "0.5"})
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.CPUWindowDuration())
	assert.Equal(t, time.Second, cfg.CollectBudget())

	cfg, err = config.Load([]string{"--interval", "2"})
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.CPUWindowDuration())
	assert.Equal(t, 2*time.Second, cfg.CollectBudget())
}

func TestCollectBudgetLeavesRoomForCPUWindow(t *testing.T) {
	t.Setenv("SYSMON_CONFIG", "")

	tests := []struct {
		name   string
		args   []string
		budget time.Duration
	}{
		{name: "default window at one second", args: []string{"--interval", "1"}, budget: 1500 * time.Millisecond},
		{name: "window equals interval", args: []string{"--interval", "2", "--cpu-window", "2"}, budget: 2500 * time.Millisecond},
		{name: "interval covers window", args: []string{"--interval", "5", "--cpu-window", "1"}, budget: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.budget, cfg.CollectBudget())
			assert.GreaterOrEqual(t, cfg.CollectBudget()-cfg.CPUWindowDuration(), config.CollectSlack)
		})
	}
}
