package bootstrap_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/mutker/sysmon/internal/bootstrap"
	"codeberg.org/mutker/sysmon/internal/config"
	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/logger"
	"codeberg.org/mutker/sysmon/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	results map[string]bootstrap.CommandResult
	err     error
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (bootstrap.CommandResult, error) {
	cmd := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, cmd)

	res, ok := f.results[cmd]
	if !ok {
		res = bootstrap.CommandResult{Command: cmd}
	}
	res.Command = cmd

	return res, f.err
}

// withModules points the module lookups at a temporary tree.
func withModules(t *testing.T, procModules string, sysModules ...string) {
	t.Helper()

	dir := t.TempDir()
	proc := filepath.Join(dir, "modules")
	require.NoError(t, os.WriteFile(proc, []byte(procModules), 0o600))

	sys := filepath.Join(dir, "sys")
	for _, m := range sysModules {
		require.NoError(t, os.MkdirAll(filepath.Join(sys, m), 0o755))
	}

	oldProc, oldSys := bootstrap.ProcModules, bootstrap.SysModuleDir
	bootstrap.ProcModules, bootstrap.SysModuleDir = proc, sys
	t.Cleanup(func() { bootstrap.ProcModules, bootstrap.SysModuleDir = oldProc, oldSys })
}

func linux() *telemetry.HostIdentity {
	return &telemetry.HostIdentity{Nodename: "box", OSFamily: "Linux"}
}

func cfg(modules ...string) config.Bootstrap {
	return config.Bootstrap{OSFamily: "Linux", Modules: modules}
}

func TestUnsupportedOS(t *testing.T) {
	runner := &fakeRunner{}
	c := bootstrap.New(cfg("drivetemp"), runner, logger.Nop())

	_, err := c.Run(context.Background(), &telemetry.HostIdentity{OSFamily: "Darwin"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrUnsupportedOS, errors.CodeOf(err))
	assert.True(t, errors.IsFatal(err))
	assert.Contains(t, err.Error(), "Darwin")
	assert.Empty(t, runner.calls)
}

func TestModuleAlreadyLoaded(t *testing.T) {
	withModules(t, "drivetemp 24576 0 - Live 0x0000000000000000\nnvidia 1 0 - Live 0x0\n")
	runner := &fakeRunner{}

	res, err := bootstrap.New(cfg("drivetemp"), runner, logger.Nop()).Run(context.Background(), linux())
	require.NoError(t, err)

	require.Len(t, res, 1)
	assert.Equal(t, bootstrap.ModulePresent, res[0].Status)
	assert.Empty(t, runner.calls)
}

func TestModuleBuiltIn(t *testing.T) {
	withModules(t, "", "i2c_dev")
	runner := &fakeRunner{}

	res, err := bootstrap.New(cfg("i2c-dev"), runner, logger.Nop()).Run(context.Background(), linux())
	require.NoError(t, err)
	assert.Equal(t, bootstrap.ModulePresent, res[0].Status)
	assert.Empty(t, runner.calls)
}

func TestModuleLoaded(t *testing.T) {
	withModules(t, "")
	runner := &fakeRunner{}

	c := bootstrap.New(config.Bootstrap{OSFamily: "Linux", Modules: []string{"drivetemp"}, UseSudo: true}, runner, logger.Nop())
	res, err := c.Run(context.Background(), linux())
	require.NoError(t, err)

	assert.Equal(t, bootstrap.ModuleLoaded, res[0].Status)
	assert.Equal(t, []string{"modprobe --dry-run drivetemp", "sudo modprobe -v drivetemp"}, runner.calls)
}

func TestModuleUnavailableWarns(t *testing.T) {
	withModules(t, "")
	runner := &fakeRunner{results: map[string]bootstrap.CommandResult{
		"modprobe --dry-run drivetemp": {ReturnCode: 1, Stderr: "modprobe: FATAL: Module drivetemp not found"},
	}}

	res, err := bootstrap.New(cfg("drivetemp"), runner, logger.Nop()).Run(context.Background(), linux())
	require.NoError(t, err)

	assert.Equal(t, bootstrap.ModuleUnavailable, res[0].Status)
	assert.Len(t, runner.calls, 1)
}

func TestModprobeMissingWarns(t *testing.T) {
	withModules(t, "")
	runner := &fakeRunner{err: fmt.Errorf("exec: \"modprobe\": executable file not found in $PATH")}

	res, err := bootstrap.New(cfg("drivetemp"), runner, logger.Nop()).Run(context.Background(), linux())
	require.NoError(t, err)
	assert.Equal(t, bootstrap.ModuleUnavailable, res[0].Status)
}

func TestModuleLoadFailureIsFatal(t *testing.T) {
	withModules(t, "")
	runner := &fakeRunner{results: map[string]bootstrap.CommandResult{
		"modprobe -v drivetemp": {ReturnCode: 1, Stdout: "insmod /lib/modules/drivetemp.ko", Stderr: "Operation not permitted"},
	}}

	_, err := bootstrap.New(cfg("drivetemp"), runner, logger.Nop()).Run(context.Background(), linux())
	require.Error(t, err)
	assert.Equal(t, errors.ErrModuleLoad, errors.CodeOf(err))
	assert.True(t, errors.IsFatal(err))

	var appErr errors.Error
	require.True(t, errors.As(err, &appErr))
	res, ok := appErr.GetData().(bootstrap.CommandResult)
	require.True(t, ok)
	assert.Equal(t, "modprobe -v drivetemp", res.Command)
	assert.Equal(t, 1, res.ReturnCode)
	assert.Contains(t, err.Error(), "Operation not permitted")
	assert.Contains(t, err.Error(), "returncode=1")
}

func TestExecRunner(t *testing.T) {
	r := bootstrap.NewRunner()

	res, err := r.Run(context.Background(), "sh", "-c", "echo out; echo err >&2; exit 3")
	if err != nil {
		t.Skipf("sh unavailable: %v", err)
	}
	assert.Equal(t, 3, res.ReturnCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, "sh -c echo out; echo err >&2; exit 3", res.Command)

	_, err = r.Run(context.Background(), "/nonexistent/binary")
	assert.Error(t, err)
}
