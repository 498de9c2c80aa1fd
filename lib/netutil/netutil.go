// Copyright (C) 2023 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package netutil

import (
	"net"
	"strconv"
)

// An InterfaceAddr is one IPv4 address assigned to a local interface.
type InterfaceAddr struct {
	Interface string
	IP        net.IP
	Mask      net.IPMask
}

func (a InterfaceAddr) String() string {
	ones, _ := a.Mask.Size()
	return a.IP.String() + "/" + strconv.Itoa(ones) + " on " + a.Interface
}

// NetworkAddress returns ip AND mask for an IPv4 address, or nil if ip is
// not IPv4 or mask is not an IPv4 mask. Masks in 16 byte form are accepted.
func NetworkAddress(ip net.IP, mask net.IPMask) net.IP {
	ip4 := ip.To4()
	if ip4 == nil {
		return nil
	}
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return nil
	}
	network := make(net.IP, net.IPv4len)
	for i := range network {
		network[i] = ip4[i] & mask[i]
	}
	return network
}

// SameNetwork reports whether a and b share a network address under mask.
func SameNetwork(a, b net.IP, mask net.IPMask) bool {
	na := NetworkAddress(a, mask)
	if na == nil {
		return false
	}
	return na.Equal(NetworkAddress(b, mask))
}

// InterfaceAddrs lists the IPv4 addresses of all interfaces that are up,
// in enumeration order. Loopback interfaces are skipped.
func InterfaceAddrs() ([]InterfaceAddr, error) {
	intfs, err := listInterfaces()
	if err != nil {
		return nil, err
	}

	var res []InterfaceAddr
	for i := range intfs {
		intf := intfs[i]
		if intf.Flags&net.FlagUp == 0 || intf.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := listInterfaceAddrs(&intf)
		if err != nil {
			l.Debugln("Listing addresses of", intf.Name, err)
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil {
				continue
			}
			res = append(res, InterfaceAddr{
				Interface: intf.Name,
				IP:        ipnet.IP.To4(),
				Mask:      ipnet.Mask,
			})
		}
	}
	return res, nil
}
