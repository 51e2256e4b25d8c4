// Package host captures the identity of the machine being sampled.
package host

import (
	"context"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/telemetry"
	"github.com/shirou/gopsutil/v3/net"
	"golang.org/x/sys/unix"
)

const (
	ErrUnameFailed      = errors.ErrorCode("host_uname_failed")
	ErrInterfacesFailed = errors.ErrorCode("host_interfaces_failed")
)

// loopback is left out of the identity.
const loopback = "lo"

// Kernel returns uname-style kernel identity.
type Kernel interface {
	Uname() (nodename, sysname, release, machine string, err error)
}

// Interfaces lists network interfaces and their addresses.
type Interfaces interface {
	Interfaces(ctx context.Context) (net.InterfaceStatList, error)
}

// Identifier builds a HostIdentity from its two sources.
type Identifier struct {
	Kernel     Kernel
	Interfaces Interfaces
}

// NewIdentifier returns an Identifier backed by the running system.
func NewIdentifier() *Identifier {
	return &Identifier{
		Kernel:     unameKernel{},
		Interfaces: gopsutilInterfaces{},
	}
}

// Identify captures the host identity. Kernel identity is required; an
// interface listing failure leaves the interface map empty.
func (id *Identifier) Identify(ctx context.Context) (*telemetry.HostIdentity, error) {
	errFactory := errors.New()

	nodename, sysname, release, machine, err := id.Kernel.Uname()
	if err != nil {
		return nil, errFactory.Wrap(ErrUnameFailed, err)
	}

	h := &telemetry.HostIdentity{
		Nodename:      nodename,
		OSFamily:      sysname,
		KernelVersion: release,
		Arch:          machine,
		Interfaces:    telemetry.NewOrdered[[]string](),
	}

	ifaces, err := id.Interfaces.Interfaces(ctx)
	if err != nil {
		return h, errFactory.Wrap(ErrInterfacesFailed, err)
	}

	for _, iface := range ifaces {
		if iface.Name == loopback {
			continue
		}
		addrs := make([]string, 0, len(iface.Addrs))
		for _, a := range iface.Addrs {
			addrs = append(addrs, a.Addr)
		}
		h.Interfaces.Set(iface.Name, addrs)
	}

	return h, nil
}

type unameKernel struct{}

func (unameKernel) Uname() (nodename, sysname, release, machine string, err error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "", "", "", "", err
	}

	return unix.ByteSliceToString(u.Nodename[:]),
		unix.ByteSliceToString(u.Sysname[:]),
		unix.ByteSliceToString(u.Release[:]),
		unix.ByteSliceToString(u.Machine[:]),
		nil
}

type gopsutilInterfaces struct{}

func (gopsutilInterfaces) Interfaces(ctx context.Context) (net.InterfaceStatList, error) {
	return net.InterfacesWithContext(ctx)
}
