// Copyright (C) 2023 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package netutil

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/d4l3k/messagediff"

	"github.com/syncthing/portmap/lib/nat"
)

var testAddrs = []InterfaceAddr{
	{Interface: "docker0", IP: net.IPv4(172, 17, 0, 1).To4(), Mask: net.CIDRMask(16, 32)},
	{Interface: "eth0", IP: net.IPv4(10, 0, 0, 5).To4(), Mask: net.CIDRMask(24, 32)},
	{Interface: "wlan0", IP: net.IPv4(192, 168, 1, 42).To4(), Mask: net.CIDRMask(24, 32)},
	{Interface: "wlan1", IP: net.IPv4(192, 168, 1, 43).To4(), Mask: net.CIDRMask(24, 32)},
}

func TestMatchInterface(t *testing.T) {
	addr, err := MatchInterface(net.ParseIP("192.168.1.1"), testAddrs)
	if err != nil {
		t.Fatal(err)
	}
	// Ties are resolved by enumeration order.
	if addr.Interface != "wlan0" {
		t.Errorf("expected wlan0, got %v", addr)
	}

	_, err = MatchInterface(net.ParseIP("192.168.2.1"), testAddrs)
	if !errors.Is(err, ErrNoMatchingInterface) {
		t.Errorf("expected ErrNoMatchingInterface, got %v", err)
	}
	if nat.KindOf(err) != nat.ConfigurationFailure {
		t.Errorf("unexpected kind %v", nat.KindOf(err))
	}

	_, err = MatchInterface(net.ParseIP("fe80::1"), testAddrs)
	if !errors.Is(err, ErrNotIPv4) {
		t.Errorf("expected ErrNotIPv4, got %v", err)
	}
}

func TestLocate(t *testing.T) {
	loc := &Locator{
		discoverGateway: func() (net.IP, error) { return net.ParseIP("10.0.0.1"), nil },
		interfaceAddrs:  func() ([]InterfaceAddr, error) { return testAddrs, nil },
	}

	info, err := loc.Locate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	expected := GatewayInfo{
		Gateway:    net.IPv4(10, 0, 0, 1).To4(),
		InternalIP: net.IPv4(10, 0, 0, 5).To4(),
		Interface:  "eth0",
	}
	if diff, equal := messagediff.PrettyDiff(expected, info); !equal {
		t.Errorf("unexpected gateway info:\n%s", diff)
	}
}

func TestLocateOverride(t *testing.T) {
	loc := &Locator{
		Gateway: net.ParseIP("192.168.1.254"),
		discoverGateway: func() (net.IP, error) {
			t.Fatal("discovery should not run when a gateway is given")
			return nil, nil
		},
		interfaceAddrs: func() ([]InterfaceAddr, error) { return testAddrs, nil },
	}

	info, err := loc.Locate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !info.InternalIP.Equal(net.ParseIP("192.168.1.42")) {
		t.Errorf("unexpected internal IP %v", info.InternalIP)
	}
}

func TestLocateFailures(t *testing.T) {
	discoverErr := errors.New("no route")

	cases := []struct {
		name     string
		discover func() (net.IP, error)
		is       error
		kind     nat.Kind
	}{
		{"ipv6 gateway", func() (net.IP, error) { return net.ParseIP("fe80::1"), nil }, ErrNotIPv4, nat.ConfigurationFailure},
		{"unspecified gateway", func() (net.IP, error) { return net.IPv4zero, nil }, ErrNotIPv4, nat.ConfigurationFailure},
		{"no match", func() (net.IP, error) { return net.ParseIP("192.168.9.1"), nil }, ErrNoMatchingInterface, nat.ConfigurationFailure},
		{"discovery", func() (net.IP, error) { return nil, discoverErr }, discoverErr, nat.NetworkFailure},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loc := &Locator{
				discoverGateway: tc.discover,
				interfaceAddrs:  func() ([]InterfaceAddr, error) { return testAddrs, nil },
			}
			_, err := loc.Locate(context.Background())
			if !errors.Is(err, tc.is) {
				t.Errorf("expected %v, got %v", tc.is, err)
			}
			if nat.KindOf(err) != tc.kind {
				t.Errorf("expected kind %v, got %v", tc.kind, nat.KindOf(err))
			}
		})
	}
}
