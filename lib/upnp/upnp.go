// Copyright (C) 2016 The Syncthing Authors.
//
// Adapted from https://github.com/jackpal/Taipei-Torrent/blob/dd88a8bfac6431c01d959ce3c745e74b8a911793/IGD.go
// Copyright (c) 2010 Jack Palevich (https://github.com/jackpal/Taipei-Torrent/blob/dd88a8bfac6431c01d959ce3c745e74b8a911793/LICENSE)
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are
// met:
//
//    * Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//    * Redistributions in binary form must reproduce the above
// copyright notice, this list of conditions and the following disclaimer
// in the documentation and/or other materials provided with the
// distribution.
//    * Neither the name of Google Inc. nor the names of its
// contributors may be used to endorse or promote products derived from
// this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
// "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
// LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
// A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
// OWNER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
// LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
// DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
// THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
// (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

// Package upnp finds a UPnP InternetGatewayDevice and drives its
// WANIPConnection service.
package upnp

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/huin/goupnp"
	"github.com/pkg/errors"

	"github.com/syncthing/portmap/lib/nat"
)

const (
	ServiceWANIPConnection1  = "urn:schemas-upnp-org:service:WANIPConnection:1"
	ServiceWANPPPConnection1 = "urn:schemas-upnp-org:service:WANPPPConnection:1"

	// DefaultSearchTarget is the SSDP search target used unless told
	// otherwise.
	DefaultSearchTarget = ServiceWANIPConnection1
	DefaultTimeout      = 3 * time.Second
)

var ErrNoDevice = errors.New("no UPnP device found")

// serviceTypes are tried in order on each discovered device.
var serviceTypes = []string{ServiceWANIPConnection1, ServiceWANPPPConnection1}

// An IGD is a discovered InternetGatewayDevice with the connection service
// we talk to.
type IGD struct {
	uuid         string
	friendlyName string
	location     *url.URL
	localIP      net.IP
	service      *Service
}

func (n *IGD) ID() string {
	return n.uuid
}

func (n *IGD) FriendlyName() string {
	return n.friendlyName
}

// FriendlyIdentifier returns a friendly identifier (friendly name + IP
// address) for the IGD.
func (n *IGD) FriendlyIdentifier() string {
	return "'" + n.FriendlyName() + "' (" + n.location.Hostname() + ")"
}

func (n *IGD) Location() *url.URL {
	return n.location
}

// LocalIP returns the address of the local interface facing the IGD.
func (n *IGD) LocalIP() net.IP {
	return n.localIP
}

func (n *IGD) Service() *Service {
	return n.service
}

// Discover searches for searchTarget for at most timeout and returns the
// first responding device that exposes a WAN connection service. There is
// no retry and only one device is considered.
func Discover(ctx context.Context, searchTarget string, timeout time.Duration) (*IGD, error) {
	if searchTarget == "" {
		searchTarget = DefaultSearchTarget
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	l.Debugln("Starting discovery of", searchTarget, "for", timeout)
	devices, err := goupnp.DiscoverDevicesCtx(ctx, searchTarget)
	if err != nil {
		return nil, nat.Wrap(nat.NetworkFailure, "discover", errors.Wrap(err, "SSDP search"))
	}

	for _, dev := range devices {
		if dev.Err != nil {
			l.Debugln("Skipping", dev.USN, dev.Err)
			continue
		}
		igd, err := newIGD(ctx, dev)
		if err != nil {
			l.Debugln("Skipping", dev.USN, err)
			continue
		}
		l.Debugf("UPnP discovery result %s at %s", igd.FriendlyIdentifier(), igd.service.URL)
		return igd, nil
	}

	return nil, nat.Wrap(nat.NetworkFailure, "discover", ErrNoDevice)
}

func newIGD(ctx context.Context, dev goupnp.MaybeRootDevice) (*IGD, error) {
	root := &dev.Root.Device
	for _, st := range serviceTypes {
		services := root.FindService(st)
		if len(services) == 0 {
			continue
		}
		svc := services[0]
		if !svc.ControlURL.Ok {
			l.Debugln(dev.Location, "- malformed", st, "description: no control URL.")
			continue
		}
		controlURL := svc.ControlURL.URL

		// Figure out our IP number, on the network used to reach the IGD.
		localIPAddress := dev.LocalAddr
		if localIPAddress == nil {
			var err error
			localIPAddress, err = localIP(ctx, dev.Location)
			if err != nil {
				return nil, err
			}
		}

		return &IGD{
			uuid:         root.UDN,
			friendlyName: root.FriendlyName,
			location:     dev.Location,
			localIP:      localIPAddress,
			service:      NewService(controlURL.String(), svc.ServiceType, http.DefaultClient),
		}, nil
	}
	return nil, errors.New("no WAN connection service")
}

func localIP(ctx context.Context, u *url.URL) (net.IP, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	conn, err := (&net.Dialer{}).DialContext(timeoutCtx, "tcp", u.Host)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	localIPAddress, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return nil, err
	}

	return net.ParseIP(localIPAddress), nil
}
