// Package bootstrap verifies the host before the first cycle: the OS family
// must be supported and the kernel modules the sensors rely on are loaded
// when possible.
package bootstrap

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/mutker/sysmon/internal/config"
	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/logger"
	"codeberg.org/mutker/sysmon/internal/telemetry"
)

// Locations consulted for loaded modules.
var (
	ProcModules  = "/proc/modules"
	SysModuleDir = "/sys/module"
)

const modprobe = "modprobe"

// ModuleStatus is the outcome of ensuring one module.
type ModuleStatus string

const (
	ModulePresent     ModuleStatus = "present"
	ModuleLoaded      ModuleStatus = "loaded"
	ModuleUnavailable ModuleStatus = "unavailable"
)

// ModuleResult records what happened to one required module.
type ModuleResult struct {
	Name   string
	Status ModuleStatus
	Result *CommandResult
}

// Checker runs the environment check once per process.
type Checker struct {
	cfg    config.Bootstrap
	runner Runner
	logger logger.Logger
}

func New(cfg config.Bootstrap, runner Runner, log logger.Logger) *Checker {
	return &Checker{cfg: cfg, runner: runner, logger: log}
}

// Run checks the OS family of h and ensures every required module. An
// unsupported OS or a failed load is fatal; a module the kernel does not
// offer only produces a warning.
func (c *Checker) Run(ctx context.Context, h *telemetry.HostIdentity) ([]ModuleResult, error) {
	if h.OSFamily != c.cfg.OSFamily {
		return nil, errors.New().
			WithData(errors.ErrUnsupportedOS, h.OSFamily).
			WithMessage("sysmon is not implemented for this system yet (supported: " + c.cfg.OSFamily + ")")
	}

	loaded, err := loadedModules()
	if err != nil {
		c.logger.Debug().Err(err).Str("path", ProcModules).Msg("Cannot read loaded modules")
	}

	results := make([]ModuleResult, 0, len(c.cfg.Modules))
	for _, m := range c.cfg.Modules {
		res, err := c.ensure(ctx, m, loaded)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}

	return results, nil
}

func (c *Checker) ensure(ctx context.Context, module string, loaded map[string]bool) (ModuleResult, error) {
	name := normalize(module)
	if loaded[name] || sysModuleExists(name) {
		c.logger.Debug().Str("module", module).Msg("Kernel module already loaded")
		return ModuleResult{Name: module, Status: ModulePresent}, nil
	}

	dry, err := c.runner.Run(ctx, modprobe, "--dry-run", module)
	if err != nil || dry.ReturnCode != 0 {
		c.logger.Warn().Str("module", module).Msg("Kernel module not found, related readings will be absent")
		return ModuleResult{Name: module, Status: ModuleUnavailable, Result: &dry}, nil
	}

	name, args := modprobe, []string{"-v", module}
	if c.cfg.UseSudo {
		name, args = "sudo", append([]string{modprobe}, args...)
	}

	c.logger.Info().Str("module", module).Msg("Loading kernel module")

	res, err := c.runner.Run(ctx, name, args...)
	if err != nil || res.ReturnCode != 0 {
		return ModuleResult{Name: module, Result: &res}, errors.New().
			Wrap(errors.ErrModuleLoad, err).
			WithData(res).
			WithMessage("error when loading module '" + module + "'")
	}

	return ModuleResult{Name: module, Status: ModuleLoaded, Result: &res}, nil
}

// loadedModules lists the first column of /proc/modules.
func loadedModules() (map[string]bool, error) {
	f, err := os.Open(ProcModules)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mods := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if fields := strings.Fields(scanner.Text()); len(fields) > 0 {
			mods[fields[0]] = true
		}
	}

	return mods, scanner.Err()
}

func sysModuleExists(name string) bool {
	_, err := os.Stat(filepath.Join(SysModuleDir, name))
	return err == nil
}

// normalize maps a module name to the form the kernel lists it under.
func normalize(module string) string {
	return strings.ReplaceAll(module, "-", "_")
}
