package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/sysmon/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix = "SYSMON"

	DefaultInterval    = 5.0
	DefaultCPUWindow   = 1.0
	DefaultSinkTimeout = 0.5
	DefaultLogDir      = "/var/log/sysmon"
	DefaultLogFile     = "sysmon.log"
	DefaultOSFamily    = "Linux"
	DefaultJob         = "sysmon"

	// CollectSlack is the time providers get beyond the CPU window.
	CollectSlack = 500 * time.Millisecond

	defaultStateFile = "remote_state.db"
)

var (
	defaultProviders = []string{ProviderCPU, ProviderTemperature, ProviderGPU, ProviderMemory}
	defaultModules   = []string{"drivetemp"}
)

// flagAliases maps accepted alternative flag names onto canonical ones.
var flagAliases = map[string]string{
	"use-wandb":  "remote",
	"no-wandb":   "no-remote",
	"log-dir":    "log_dir",
	"cpu_window": "cpu-window",
}

// Load builds the configuration from defaults, the config file, SYSMON_*
// environment variables and command line args, in increasing precedence.
// args excludes the program name.
func Load(args []string) (*Config, error) {
	errFactory := errors.New()
	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet("sysmon", pflag.ContinueOnError)
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if canonical, ok := flagAliases[name]; ok {
			name = canonical
		}
		return pflag.NormalizedName(name)
	})

	fs.String("config", "", "Configuration file location")
	fs.Float64("interval", DefaultInterval, "Seconds between samples")
	fs.Float64("cpu-window", DefaultCPUWindow, "Seconds over which CPU usage is measured")
	fs.String("log_dir", DefaultLogDir, "Directory for the sample log")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.StringSlice("providers", defaultProviders, "Metric providers to sample ("+strings.Join(KnownProviders, ",")+")")
	fs.Bool("remote", false, "Enable the remote metrics sink")
	noRemote := fs.Bool("no-remote", false, "Disable the remote metrics sink")

	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	bindings := map[string]string{
		"config":         "config",
		"interval":       "interval",
		"cpu_window":     "cpu-window",
		"log_dir":        "log_dir",
		"verbose":        "verbose",
		"debug":          "debug",
		"providers":      "providers",
		"remote.enabled": "remote",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	// The default window shrinks with short intervals; an explicit one is
	// validated as given.
	_, windowFromEnv := os.LookupEnv(envPrefix + "_CPU_WINDOW")
	windowSet := fs.Changed("cpu-window") || v.InConfig("cpu_window") || windowFromEnv
	if !windowSet && cfg.CPUWindow > cfg.Interval {
		cfg.CPUWindow = cfg.Interval
	}

	if fs.Changed("no-remote") && *noRemote {
		cfg.Remote.Enabled = false
	}

	cfg.Providers = normalizeProviders(cfg.Providers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("cpu_window", DefaultCPUWindow)
	v.SetDefault("sink_timeout", DefaultSinkTimeout)
	v.SetDefault("console", true)
	v.SetDefault("log_dir", DefaultLogDir)
	v.SetDefault("log_file", DefaultLogFile)
	v.SetDefault("providers", defaultProviders)
	v.SetDefault("bootstrap.os_family", DefaultOSFamily)
	v.SetDefault("bootstrap.modules", defaultModules)
	v.SetDefault("bootstrap.use_sudo", false)
	v.SetDefault("config", "")

	// Every remote key gets a default so SYSMON_REMOTE_* variables are
	// seen by Unmarshal.
	v.SetDefault("remote.enabled", false)
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.job", DefaultJob)
	v.SetDefault("remote.username", "")
	v.SetDefault("remote.password", "")
	v.SetDefault("remote.entity", "")
	v.SetDefault("remote.project", "")
	v.SetDefault("remote.run_name", "")
	v.SetDefault("remote.notes", "")
	v.SetDefault("remote.resume", string(ResumeAllow))
	v.SetDefault("remote.state_path", "")
}

// readConfigFile reads --config, or $SYSMON_CONFIG. An explicitly named
// file that is missing or malformed is an error; no file at all is not.
func readConfigFile(v *viper.Viper) error {
	errFactory := errors.New()

	path := v.GetString("config")
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" || ext == "conf" {
		v.SetConfigType("toml")
	}

	if err := v.ReadInConfig(); err != nil {
		return errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

// normalizeProviders splits comma-joined entries and lowercases names.
func normalizeProviders(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool)
	for _, entry := range in {
		for _, p := range strings.Split(entry, ",") {
			p = strings.ToLower(strings.TrimSpace(p))
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}

	if c.CPUWindow <= 0 || c.CPUWindow > c.Interval {
		return errFactory.WithMessage(errors.ErrInvalidConfig,
			fmt.Sprintf("cpu_window must be in (0, interval=%g], got %g", c.Interval, c.CPUWindow))
	}

	if c.SinkTimeout <= 0 || c.SinkTimeout > 1 {
		return errFactory.WithMessage(errors.ErrInvalidConfig,
			fmt.Sprintf("sink_timeout must be a fraction in (0, 1], got %g", c.SinkTimeout))
	}

	for _, p := range c.Providers {
		if !isKnownProvider(p) {
			return errFactory.WithMessage(errors.ErrInvalidConfig, "unknown provider: "+p)
		}
	}

	if c.LogFile != "" && c.LogDir == "" && !filepath.IsAbs(c.LogFile) {
		return errFactory.WithMessage(errors.ErrMissingConfig, "log_dir is required for a relative log_file")
	}

	if c.Remote.Enabled {
		if err := c.Remote.validate(); err != nil {
			return err
		}
	}

	return nil
}

func (r Remote) validate() error {
	errFactory := errors.New()

	if r.URL == "" {
		return errFactory.WithMessage(errors.ErrMissingConfig, "remote.url is required when the remote sink is enabled")
	}
	if r.Project == "" {
		return errFactory.WithMessage(errors.ErrMissingConfig, "remote.project is required when the remote sink is enabled")
	}
	if !r.Resume.IsValid() {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "remote.resume must be one of allow, must, never; got "+string(r.Resume))
	}
	if r.Password != "" && r.Username == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "remote.password requires remote.username")
	}

	return nil
}

func isKnownProvider(name string) bool {
	for _, p := range KnownProviders {
		if p == name {
			return true
		}
	}
	return false
}
