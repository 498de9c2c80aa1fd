// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/d4l3k/messagediff"

	"github.com/syncthing/portmap/lib/nat"
	"github.com/syncthing/portmap/lib/pmp"
	"github.com/syncthing/portmap/lib/prompt"
	"github.com/syncthing/portmap/lib/svcutil"
)

type fakeRequester struct {
	requests []pmp.Request
	deleted  []nat.Protocol
	err      error
}

func (f *fakeRequester) ExternalAddress(context.Context) (net.IP, error) {
	return net.IPv4(203, 0, 113, 7), nil
}

func (f *fakeRequester) CreateMappings(_ context.Context, req pmp.Request) ([]nat.Mapping, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	var ms []nat.Mapping
	for _, proto := range req.Selection.Protocols() {
		ms = append(ms, nat.Mapping{Protocol: proto, InternalPort: req.InternalPort, ExternalPort: req.ExternalPort, Lifetime: req.Lifetime})
	}
	return ms, nil
}

func (f *fakeRequester) DeleteMapping(_ context.Context, proto nat.Protocol, _ int) error {
	f.deleted = append(f.deleted, proto)
	return f.err
}

func TestRunDefaults(t *testing.T) {
	out := new(bytes.Buffer)
	f := &fakeRequester{}

	if err := run(context.Background(), prompt.New(strings.NewReader("\n\n1\n\n"), out), f, false); err != nil {
		t.Fatal(err)
	}

	expected := []pmp.Request{{
		Selection:    nat.SelectTCP,
		InternalPort: 8080,
		ExternalPort: 8080,
		Lifetime:     time.Hour,
	}}
	if diff, equal := messagediff.PrettyDiff(expected, f.requests); !equal {
		t.Errorf("unexpected requests:\n%s", diff)
	}
	if !strings.Contains(out.String(), "External IP Address: 203.0.113.7") {
		t.Errorf("missing external address in output:\n%s", out)
	}
	if !strings.Contains(out.String(), "Port mapped (TCP): external 8080 -> internal 8080 for 1h0m0s") {
		t.Errorf("missing confirmation in output:\n%s", out)
	}
}

func TestRunBoth(t *testing.T) {
	out := new(bytes.Buffer)
	f := &fakeRequester{}

	if err := run(context.Background(), prompt.New(strings.NewReader("22000\n22001\n3\n60\n"), out), f, false); err != nil {
		t.Fatal(err)
	}
	if len(f.requests) != 1 || f.requests[0].Selection != nat.SelectBoth || f.requests[0].Lifetime != time.Minute {
		t.Errorf("unexpected requests %+v", f.requests)
	}
	if strings.Count(out.String(), "Port mapped") != 2 {
		t.Errorf("expected two confirmations:\n%s", out)
	}
}

func TestRunParseFailureAborts(t *testing.T) {
	f := &fakeRequester{}
	err := run(context.Background(), prompt.New(strings.NewReader("abc\n"), new(bytes.Buffer)), f, false)
	if nat.KindOf(err) != nat.ParseFailure {
		t.Errorf("expected parse failure, got %v", err)
	}
	if svcutil.ExitStatusFor(err) != svcutil.ExitInput {
		t.Errorf("unexpected exit status %d", svcutil.ExitStatusFor(err))
	}
	if len(f.requests) != 0 {
		t.Errorf("no mapping should be requested, got %v", f.requests)
	}
}

func TestRunInvalidProtocolAborts(t *testing.T) {
	f := &fakeRequester{}
	err := run(context.Background(), prompt.New(strings.NewReader("\n\n7\n"), new(bytes.Buffer)), f, false)
	if nat.KindOf(err) != nat.ParseFailure {
		t.Errorf("expected parse failure, got %v", err)
	}
	if len(f.requests) != 0 {
		t.Errorf("no mapping should be requested, got %v", f.requests)
	}
}

func TestRunBlankProtocolAborts(t *testing.T) {
	f := &fakeRequester{}
	out := new(bytes.Buffer)
	err := run(context.Background(), prompt.New(strings.NewReader("\n\n\n\n"), out), f, false)
	if nat.KindOf(err) != nat.ParseFailure {
		t.Errorf("expected parse failure, got %v", err)
	}
	if len(f.requests) != 0 {
		t.Errorf("no mapping should be requested, got %v", f.requests)
	}
	if !strings.Contains(out.String(), "Enter your choice (1/2/3): ") {
		t.Errorf("protocol prompt should not offer a default:\n%s", out)
	}

	err = run(context.Background(), prompt.New(strings.NewReader("8080\n\n"), new(bytes.Buffer)), f, true)
	if nat.KindOf(err) != nat.ParseFailure || len(f.deleted) != 0 {
		t.Errorf("blank protocol should abort deletion, got %v, deleted %v", err, f.deleted)
	}
}

func TestRunRequestFailure(t *testing.T) {
	f := &fakeRequester{err: nat.Wrap(nat.NetworkFailure, "map", errors.New("Timed out"))}
	err := run(context.Background(), prompt.New(strings.NewReader("\n\n1\n\n"), new(bytes.Buffer)), f, false)
	if svcutil.ExitStatusFor(err) != svcutil.ExitError {
		t.Errorf("expected a failing exit status, got %v", err)
	}
}

func TestRunDelete(t *testing.T) {
	f := &fakeRequester{}
	if err := run(context.Background(), prompt.New(strings.NewReader("8080\n3\n"), new(bytes.Buffer)), f, true); err != nil {
		t.Fatal(err)
	}
	if diff, equal := messagediff.PrettyDiff([]nat.Protocol{nat.TCP, nat.UDP}, f.deleted); !equal {
		t.Errorf("unexpected deletions:\n%s", diff)
	}
}

func TestRunInvalidGateway(t *testing.T) {
	c := &CLI{Gateway: "not-an-ip"}
	err := c.Run(context.Background(), strings.NewReader(""), new(bytes.Buffer))
	if svcutil.ExitStatusFor(err) != svcutil.ExitInput {
		t.Errorf("expected input exit status, got %v", err)
	}
}
