package pid_test

import (
	"os"
	"strconv"
	"testing"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/pid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()

	f, err := pid.Acquire(dir)
	require.NoError(t, err)

	data, err := os.ReadFile(pid.Path(dir))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, f.Release())
	_, err = os.Stat(pid.Path(dir))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, f.Release())
}

func TestAcquireLiveProcess(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(pid.Path(dir), []byte(strconv.Itoa(os.Getppid())), 0o600))

	_, err := pid.Acquire(dir)
	require.Error(t, err)
	assert.Equal(t, errors.ErrAlreadyRunning, errors.CodeOf(err))
	assert.True(t, errors.IsFatal(err))
}

func TestAcquireReplacesStaleFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "garbage", content: "not-a-pid"},
		{name: "own pid", content: strconv.Itoa(os.Getpid())},
		{name: "dead pid", content: "2147483646"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(pid.Path(dir), []byte(tt.content), 0o600))

			f, err := pid.Acquire(dir)
			require.NoError(t, err)
			require.NoError(t, f.Release())
		})
	}
}

func TestAcquireCreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/logs"

	f, err := pid.Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, f.Release())
}
