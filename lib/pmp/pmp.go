// Copyright (C) 2016 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package pmp requests external addresses and port mappings over NAT-PMP.
package pmp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	natpmp "github.com/jackpal/go-nat-pmp"

	"github.com/syncthing/portmap/lib/nat"
	"github.com/syncthing/portmap/lib/svcutil"
)

// MaxLifetime is the longest lifetime the 32 bit NAT-PMP field can carry.
const MaxLifetime = math.MaxUint32 * time.Second

// DefaultLifetime is requested when the caller asks for a zero lifetime,
// since NAT-PMP treats a zero lifetime as a deletion.
const DefaultLifetime = time.Hour

var (
	ErrNoGateway       = errors.New("no gateway address")
	ErrInvalidLifetime = errors.New("lifetime out of range")
)

// client is the subset of *natpmp.Client that we use.
type client interface {
	GetExternalAddress() (*natpmp.GetExternalAddressResult, error)
	AddPortMapping(protocol string, internalPort, requestedExternalPort int, lifetime int) (*natpmp.AddPortMappingResult, error)
}

// A Request asks for one mapping per selected protocol.
type Request struct {
	Selection    nat.Selection
	InternalPort int
	// ExternalPort is the requested public port; the gateway may grant a
	// different one. Zero lets the gateway choose.
	ExternalPort int
	Lifetime     time.Duration
}

type Client struct {
	gatewayIP net.IP
	client    client
}

// New returns a client for the gateway. A zero timeout selects the
// library's default retry schedule.
func New(gatewayIP net.IP, timeout time.Duration) (*Client, error) {
	if gatewayIP == nil || gatewayIP.IsUnspecified() {
		return nil, nat.Wrap(nat.ConfigurationFailure, "natpmp client", ErrNoGateway)
	}
	var c *natpmp.Client
	if timeout > 0 {
		c = natpmp.NewClientWithTimeout(gatewayIP, timeout)
	} else {
		c = natpmp.NewClient(gatewayIP)
	}
	return &Client{
		gatewayIP: gatewayIP,
		client:    c,
	}, nil
}

func (c *Client) ID() string {
	return fmt.Sprintf("NAT-PMP@%s", c.gatewayIP.String())
}

// ExternalAddress asks the gateway for its public IPv4 address.
func (c *Client) ExternalAddress(ctx context.Context) (net.IP, error) {
	var result *natpmp.GetExternalAddressResult
	err := svcutil.CallWithContext(ctx, func() error {
		var err error
		result, err = c.client.GetExternalAddress()
		return err
	})
	observe(actionExternalAddress, err)
	if err != nil {
		return nil, classify("get external address", err)
	}
	ip := net.IPv4(
		result.ExternalIPAddress[0],
		result.ExternalIPAddress[1],
		result.ExternalIPAddress[2],
		result.ExternalIPAddress[3],
	)
	l.Debugln(c.ID(), "external address is", ip)
	return ip, nil
}

// CreateMappings requests a mapping for each protocol of the selection,
// TCP first. The first failure stops the sequence; mappings granted
// before it are returned together with the error.
func (c *Client) CreateMappings(ctx context.Context, req Request) ([]nat.Mapping, error) {
	protocols := req.Selection.Protocols()
	if len(protocols) == 0 {
		return nil, nat.Wrap(nat.ParseFailure, "create mapping", fmt.Errorf("invalid protocol selection %v", req.Selection))
	}

	lifetime := req.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	if lifetime < time.Second || lifetime > MaxLifetime {
		return nil, nat.Wrap(nat.ParseFailure, "create mapping", fmt.Errorf("%w: %v", ErrInvalidLifetime, lifetime))
	}

	started := time.Now()
	var mappings []nat.Mapping
	for _, proto := range protocols {
		m, err := c.addPortMapping(ctx, proto, req.InternalPort, req.ExternalPort, lifetime)
		if err != nil {
			nat.LogMappings(ctx, c.ID(), started, mappings, err)
			return mappings, err
		}
		mappings = append(mappings, m)
	}
	nat.LogMappings(ctx, c.ID(), started, mappings, nil)
	return mappings, nil
}

// DeleteMapping removes the mapping for the internal port by requesting
// a zero lifetime.
func (c *Client) DeleteMapping(ctx context.Context, proto nat.Protocol, internalPort int) error {
	err := svcutil.CallWithContext(ctx, func() error {
		_, err := c.client.AddPortMapping(proto.Lower(), internalPort, 0, 0)
		return err
	})
	observe(deleteAction(proto), err)
	if err != nil {
		return classify(fmt.Sprintf("delete %s mapping for port %d", proto, internalPort), err)
	}
	return nil
}

func (c *Client) addPortMapping(ctx context.Context, proto nat.Protocol, internalPort, externalPort int, lifetime time.Duration) (nat.Mapping, error) {
	var result *natpmp.AddPortMappingResult
	err := svcutil.CallWithContext(ctx, func() error {
		var err error
		result, err = c.client.AddPortMapping(proto.Lower(), internalPort, externalPort, int(lifetime/time.Second))
		return err
	})
	observe(mapAction(proto), err)
	if err != nil {
		return nat.Mapping{}, classify(fmt.Sprintf("map %s port %d", proto, internalPort), err)
	}
	return nat.Mapping{
		Protocol:     proto,
		InternalPort: int(result.InternalPort),
		ExternalPort: int(result.MappedExternalPort),
		Lifetime:     time.Duration(result.PortMappingLifetimeInSeconds) * time.Second,
	}, nil
}

func mapAction(proto nat.Protocol) string {
	if proto == nat.UDP {
		return actionMapUDP
	}
	return actionMapTCP
}

func deleteAction(proto nat.Protocol) string {
	if proto == nat.UDP {
		return actionDeleteUDP
	}
	return actionDeleteTCP
}

// classify sorts library errors into timeouts, which mean the gateway did
// not answer, and everything else, which means it answered badly.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nat.Wrap(nat.NetworkFailure, op, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) || strings.Contains(err.Error(), "Timed out") {
		return nat.Wrap(nat.NetworkFailure, op, err)
	}
	return nat.Wrap(nat.ProtocolFailure, op, err)
}
