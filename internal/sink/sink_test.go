package sink_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/logger"
	"codeberg.org/mutker/sysmon/internal/render"
	"codeberg.org/mutker/sysmon/internal/sink"
	"codeberg.org/mutker/sysmon/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(ts time.Time) *telemetry.Snapshot {
	s := telemetry.NewSnapshot(&telemetry.HostIdentity{Nodename: "box", OSFamily: "Linux"}, ts)
	s.CPU = &telemetry.CPUSample{TotalCores: 8, ProcessorSpeed: 3200.0, TotalCPUUsage: 12.5}

	devices := telemetry.NewOrdered[telemetry.GPUDevice]()
	devices.Set("gpu0_TestCard", telemetry.GPUDevice{Name: "TestCard", Temperature: 65.0, GPUUtilization: 42})
	s.GPU = &telemetry.GPUSample{Devices: devices}

	return s
}

type recordingSink struct {
	name     string
	err      error
	block    bool
	received []*telemetry.Snapshot
	closed   bool
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Consume(ctx context.Context, snap *telemetry.Snapshot) error {
	if r.block {
		<-ctx.Done()
		return ctx.Err()
	}
	r.received = append(r.received, snap)
	return r.err
}

func (r *recordingSink) Close() error {
	r.closed = true
	return r.err
}

func TestDispatchFailureDoesNotStopOtherSinks(t *testing.T) {
	console := &recordingSink{name: "console"}
	file := &recordingSink{name: "file", err: fmt.Errorf("disk full")}
	remote := &recordingSink{name: "remote"}

	var failed []string
	d := sink.NewDispatcher(time.Second, logger.Nop(), console, file, remote)
	d.OnFailure = func(name string) { failed = append(failed, name) }

	for range 2 {
		assert.Equal(t, 1, d.Dispatch(context.Background(), snapshot(time.Now())))
	}

	assert.Len(t, console.received, 2)
	assert.Len(t, file.received, 2)
	assert.Len(t, remote.received, 2)
	assert.Equal(t, []string{"file", "file"}, failed)
}

func TestDispatchBoundsSlowSink(t *testing.T) {
	slow := &recordingSink{name: "remote", block: true}
	after := &recordingSink{name: "other"}

	d := sink.NewDispatcher(50*time.Millisecond, logger.Nop(), slow, after)

	start := time.Now()
	failed := d.Dispatch(context.Background(), snapshot(time.Now()))

	assert.Equal(t, 1, failed)
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, after.received, 1)
}

func TestDispatcherCloseClosesAll(t *testing.T) {
	a := &recordingSink{name: "a", err: fmt.Errorf("close a")}
	b := &recordingSink{name: "b"}

	d := sink.NewDispatcher(0, logger.Nop(), a, b)
	err := d.Close()

	require.Error(t, err)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := sink.NewConsole(&buf, false)

	require.NoError(t, c.Consume(context.Background(), snapshot(time.Now())))

	out := buf.String()
	assert.Contains(t, out, "total_cores: 8;")
	assert.Contains(t, out, "processor_speed: 3200.0;")
	assert.Contains(t, out, "total_cpu_usage: 12.5;")
	assert.Contains(t, out, "gpu0_TestCard: (temp: 65.0°C, util: 42%)")
	assert.NotContains(t, out, "TEMPS")
	assert.NotContains(t, out, render.Separator)
}

func TestConsoleVerboseAddsTimestamp(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)

	require.NoError(t, sink.NewConsole(&buf, true).Consume(context.Background(), snapshot(ts)))
	assert.True(t, strings.HasPrefix(buf.String(), "2024-05-01 12:00:00.000000\n"))
}

func TestFileAppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sysmon.log")
	first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	second := first.Add(5 * time.Second)

	for _, ts := range []time.Time{first, second} {
		f, err := sink.NewFile(path)
		require.NoError(t, err)
		require.NoError(t, f.Consume(context.Background(), snapshot(ts)))
		require.NoError(t, f.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	want := render.Snapshot(snapshot(first), render.Options{Timestamp: true, Separator: true}) +
		render.Snapshot(snapshot(second), render.Options{Timestamp: true, Separator: true})
	assert.Equal(t, want, string(data))
	assert.Equal(t, 2, strings.Count(string(data), render.Separator+"\n"))
}

func TestFileConsoleShowSameValues(t *testing.T) {
	var buf bytes.Buffer
	snap := snapshot(time.Now())
	require.NoError(t, sink.NewConsole(&buf, false).Consume(context.Background(), snap))

	path := filepath.Join(t.TempDir(), "sysmon.log")
	f, err := sink.NewFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Consume(context.Background(), snap))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.Contains(t, string(data), line)
	}
}

func TestFileOpenFailureIsFatal(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, err := sink.NewFile(filepath.Join(blocker, "sysmon.log"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrOpenLog, errors.CodeOf(err))
	assert.True(t, errors.IsFatal(err))
}

func TestFileAfterClose(t *testing.T) {
	f, err := sink.NewFile(filepath.Join(t.TempDir(), "sysmon.log"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	err = f.Consume(context.Background(), snapshot(time.Now()))
	assert.Equal(t, sink.ErrWriteFailed, errors.CodeOf(err))
}

func TestNop(t *testing.T) {
	n := sink.NewNop("remote")
	assert.Equal(t, "remote", n.Name())
	assert.NoError(t, n.Consume(context.Background(), snapshot(time.Now())))
	assert.NoError(t, n.Close())
}
