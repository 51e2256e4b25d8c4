package host_test

import (
	"context"
	"fmt"
	"testing"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/host"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKernel struct {
	err error
}

func (k fakeKernel) Uname() (string, string, string, string, error) {
	return "box", "Linux", "6.8.0-41-generic", "x86_64", k.err
}

type fakeInterfaces struct {
	list net.InterfaceStatList
	err  error
}

func (f fakeInterfaces) Interfaces(context.Context) (net.InterfaceStatList, error) {
	return f.list, f.err
}

func TestIdentify(t *testing.T) {
	id := &host.Identifier{
		Kernel: fakeKernel{},
		Interfaces: fakeInterfaces{list: net.InterfaceStatList{
			{Name: "lo", Addrs: net.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
			{Name: "eth0", Addrs: net.InterfaceAddrList{{Addr: "10.0.0.2/24"}, {Addr: "fe80::2/64"}}},
			{Name: "docker0"},
		}},
	}

	h, err := id.Identify(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "box", h.Nodename)
	assert.Equal(t, "Linux", h.OSFamily)
	assert.Equal(t, "6.8.0-41-generic", h.KernelVersion)
	assert.Equal(t, "x86_64", h.Arch)
	assert.Equal(t, []string{"eth0", "docker0"}, h.Interfaces.Keys())

	addrs, ok := h.Interfaces.Get("eth0")
	require.True(t, ok)
	assert.Equal(t, []string{"10.0.0.2/24", "fe80::2/64"}, addrs)
}

func TestIdentifyUnameFailure(t *testing.T) {
	id := &host.Identifier{Kernel: fakeKernel{err: fmt.Errorf("EFAULT")}, Interfaces: fakeInterfaces{}}

	_, err := id.Identify(context.Background())
	require.Error(t, err)
	assert.Equal(t, host.ErrUnameFailed, errors.CodeOf(err))
}

func TestIdentifyInterfacesFailureKeepsKernel(t *testing.T) {
	id := &host.Identifier{Kernel: fakeKernel{}, Interfaces: fakeInterfaces{err: fmt.Errorf("permission denied")}}

	h, err := id.Identify(context.Background())
	require.Error(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "Linux", h.OSFamily)
	assert.Equal(t, 0, h.Interfaces.Len())
}

func TestIdentifyRealHost(t *testing.T) {
	h, err := host.NewIdentifier().Identify(context.Background())
	if err != nil && h == nil {
		t.Skipf("uname unavailable: %v", err)
	}
	assert.NotEmpty(t, h.OSFamily)
	assert.NotEmpty(t, h.KernelVersion)
}
