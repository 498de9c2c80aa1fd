// Copyright (C) 2023 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackpal/gateway"

	"github.com/syncthing/portmap/lib/nat"
	"github.com/syncthing/portmap/lib/svcutil"
)

var (
	ErrNotIPv4             = errors.New("default gateway is not an IPv4 address")
	ErrNoMatchingInterface = errors.New("no interface address on the gateway's network")
)

// GatewayInfo describes the default gateway and the local address facing it.
type GatewayInfo struct {
	Gateway    net.IP
	InternalIP net.IP
	Interface  string
}

func (g GatewayInfo) String() string {
	return fmt.Sprintf("gateway %s via %s (%s)", g.Gateway, g.InternalIP, g.Interface)
}

// MatchInterface returns the first address whose network, under its own
// mask, contains the gateway.
func MatchInterface(gw net.IP, addrs []InterfaceAddr) (InterfaceAddr, error) {
	gw4 := gw.To4()
	if gw4 == nil {
		return InterfaceAddr{}, nat.Wrap(nat.ConfigurationFailure, "match interface", ErrNotIPv4)
	}
	for _, addr := range addrs {
		if SameNetwork(addr.IP, gw4, addr.Mask) {
			return addr, nil
		}
		l.Debugf("%v does not contain gateway %s", addr, gw4)
	}
	return InterfaceAddr{}, nat.Wrap(nat.ConfigurationFailure, "match interface", ErrNoMatchingInterface)
}

// A Locator finds the default gateway and the interface facing it. The
// zero value uses the system routing table and interface list.
type Locator struct {
	// Gateway, when set, is used instead of the discovered default gateway.
	Gateway net.IP

	discoverGateway func() (net.IP, error)
	interfaceAddrs  func() ([]InterfaceAddr, error)
}

func (loc *Locator) Locate(ctx context.Context) (GatewayInfo, error) {
	gw := loc.Gateway
	if gw == nil {
		discover := loc.discoverGateway
		if discover == nil {
			discover = gateway.DiscoverGateway
		}
		err := svcutil.CallWithContext(ctx, func() error {
			var err error
			gw, err = discover()
			return err
		})
		if err != nil {
			return GatewayInfo{}, nat.Wrap(nat.NetworkFailure, "discover gateway", err)
		}
		l.Debugln("Discovered gateway at", gw)
	}

	if gw.To4() == nil || gw.IsUnspecified() {
		return GatewayInfo{}, nat.Wrap(nat.ConfigurationFailure, "locate gateway", fmt.Errorf("%w: %v", ErrNotIPv4, gw))
	}

	list := loc.interfaceAddrs
	if list == nil {
		list = InterfaceAddrs
	}
	addrs, err := list()
	if err != nil {
		return GatewayInfo{}, nat.Wrap(nat.ConfigurationFailure, "list interfaces", err)
	}

	addr, err := MatchInterface(gw, addrs)
	if err != nil {
		return GatewayInfo{}, err
	}

	return GatewayInfo{
		Gateway:    gw.To4(),
		InternalIP: addr.IP,
		Interface:  addr.Interface,
	}, nil
}
