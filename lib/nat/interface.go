// Copyright (C) 2015 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package nat holds the vocabulary shared by the NAT-PMP and UPnP port
// mapping requesters.
package nat

import (
	"fmt"
	"strings"
	"time"
)

type Protocol string

const (
	TCP Protocol = "TCP"
	UDP Protocol = "UDP"
)

// Lower returns the protocol name as NAT-PMP clients expect it.
func (p Protocol) Lower() string {
	return strings.ToLower(string(p))
}

// Selection is the user's choice of protocols for a mapping request.
type Selection int

const (
	SelectTCP Selection = iota + 1
	SelectUDP
	SelectBoth
)

// ParseSelection maps the menu answers "1", "2" and "3" to a Selection.
func ParseSelection(s string) (Selection, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return SelectTCP, nil
	case "2":
		return SelectUDP, nil
	case "3":
		return SelectBoth, nil
	}
	return 0, &Error{Kind: ParseFailure, Op: "parse protocol choice", Err: fmt.Errorf("invalid choice %q", s)}
}

// Protocols returns the protocols to request, in request order. TCP always
// comes before UDP.
func (s Selection) Protocols() []Protocol {
	switch s {
	case SelectTCP:
		return []Protocol{TCP}
	case SelectUDP:
		return []Protocol{UDP}
	case SelectBoth:
		return []Protocol{TCP, UDP}
	default:
		return nil
	}
}

func (s Selection) String() string {
	switch s {
	case SelectTCP:
		return "TCP"
	case SelectUDP:
		return "UDP"
	case SelectBoth:
		return "BOTH"
	default:
		return fmt.Sprintf("Selection(%d)", int(s))
	}
}

// A Mapping is a port mapping as granted by the gateway.
type Mapping struct {
	Protocol     Protocol
	InternalPort int
	ExternalPort int
	Lifetime     time.Duration
}

func (m Mapping) String() string {
	if m.Lifetime > 0 {
		return fmt.Sprintf("%s external %d -> internal %d (%v)", m.Protocol, m.ExternalPort, m.InternalPort, m.Lifetime)
	}
	return fmt.Sprintf("%s external %d -> internal %d", m.Protocol, m.ExternalPort, m.InternalPort)
}
