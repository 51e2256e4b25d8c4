package config

import (
	"path/filepath"
	"time"
)

// Provider names recognised in the providers list.
const (
	ProviderCPU         = "cpu"
	ProviderMemory      = "memory"
	ProviderTemperature = "temperature"
	ProviderGPU         = "gpu"
	ProviderDisk        = "disk"
	ProviderNetwork     = "network"
	ProviderProcess     = "process"
	ProviderLoad        = "load"
	ProviderUptime      = "uptime"
)

// KnownProviders lists every provider name in default rendering order.
var KnownProviders = []string{
	ProviderCPU,
	ProviderTemperature,
	ProviderGPU,
	ProviderMemory,
	ProviderDisk,
	ProviderNetwork,
	ProviderLoad,
	ProviderUptime,
	ProviderProcess,
}

// ResumePolicy controls how the remote sink picks up a previous run.
type ResumePolicy string

const (
	// ResumeAllow continues a stored run when one exists.
	ResumeAllow ResumePolicy = "allow"
	// ResumeMust fails startup unless a stored run exists.
	ResumeMust ResumePolicy = "must"
	// ResumeNever always starts a new run.
	ResumeNever ResumePolicy = "never"
)

// IsValid returns whether the policy is known
func (p ResumePolicy) IsValid() bool {
	switch p {
	case ResumeAllow, ResumeMust, ResumeNever:
		return true
	default:
		return false
	}
}

// Remote configures the remote metrics sink.
type Remote struct {
	Enabled   bool         `mapstructure:"enabled"`
	URL       string       `mapstructure:"url"`
	Job       string       `mapstructure:"job"`
	Username  string       `mapstructure:"username"`
	Password  string       `mapstructure:"password"`
	Entity    string       `mapstructure:"entity"`
	Project   string       `mapstructure:"project"`
	RunName   string       `mapstructure:"run_name"`
	Notes     string       `mapstructure:"notes"`
	Resume    ResumePolicy `mapstructure:"resume"`
	StatePath string       `mapstructure:"state_path"`
}

// Bootstrap configures the one-time environment check.
type Bootstrap struct {
	OSFamily string   `mapstructure:"os_family"`
	Modules  []string `mapstructure:"modules"`
	UseSudo  bool     `mapstructure:"use_sudo"`
}

// Config is loaded once before the loop and never mutated afterwards.
type Config struct {
	ConfigFile  string    `mapstructure:"config"`
	Interval    float64   `mapstructure:"interval"`
	CPUWindow   float64   `mapstructure:"cpu_window"`
	SinkTimeout float64   `mapstructure:"sink_timeout"`
	Verbose     bool      `mapstructure:"verbose"`
	Debug       bool      `mapstructure:"debug"`
	Console     bool      `mapstructure:"console"`
	LogDir      string    `mapstructure:"log_dir"`
	LogFile     string    `mapstructure:"log_file"`
	Providers   []string  `mapstructure:"providers"`
	Bootstrap   Bootstrap `mapstructure:"bootstrap"`
	Remote      Remote    `mapstructure:"remote"`
}

// IntervalDuration returns the reporting interval.
func (c *Config) IntervalDuration() time.Duration {
	return seconds(c.Interval)
}

// CPUWindowDuration returns the CPU utilisation measurement window.
func (c *Config) CPUWindowDuration() time.Duration {
	return seconds(c.CPUWindow)
}

// CollectBudget returns how long one cycle's providers may run: the
// interval, extended so the CPU window always fits with CollectSlack to
// spare.
func (c *Config) CollectBudget() time.Duration {
	return max(c.IntervalDuration(), c.CPUWindowDuration()+CollectSlack)
}

// SinkTimeoutDuration returns the per-sink budget within one cycle.
func (c *Config) SinkTimeoutDuration() time.Duration {
	return seconds(c.Interval * c.SinkTimeout)
}

// LogPath returns the file sink path, or "" when the file sink is off.
func (c *Config) LogPath() string {
	if c.LogFile == "" {
		return ""
	}
	if filepath.IsAbs(c.LogFile) {
		return c.LogFile
	}
	return filepath.Join(c.LogDir, c.LogFile)
}

// RemoteStatePath returns where the remote run state is stored.
func (c *Config) RemoteStatePath() string {
	if c.Remote.StatePath != "" {
		return c.Remote.StatePath
	}
	return filepath.Join(c.LogDir, defaultStateFile)
}

// ProviderEnabled reports whether name is in the providers list.
func (c *Config) ProviderEnabled(name string) bool {
	for _, p := range c.Providers {
		if p == name {
			return true
		}
	}
	return false
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
