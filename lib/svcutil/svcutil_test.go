// Copyright (C) 2016 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package svcutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/syncthing/portmap/lib/nat"
)

func TestCallWithContext(t *testing.T) {
	sentinel := errors.New("sentinel")
	if err := CallWithContext(context.Background(), func() error { return sentinel }); err != sentinel {
		t.Errorf("expected sentinel, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	block := make(chan struct{})
	defer close(block)
	cancel()
	err := CallWithContext(ctx, func() error {
		<-block
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCallWithContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := CallWithContext(ctx, func() error {
		time.Sleep(time.Second)
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestExitStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status ExitStatus
	}{
		{nil, ExitSuccess},
		{errors.New("plain"), ExitError},
		{nat.Wrap(nat.NetworkFailure, "op", errors.New("x")), ExitError},
		{nat.Wrap(nat.ParseFailure, "op", errors.New("x")), ExitInput},
		{nat.Wrap(nat.ConfigurationFailure, "op", errors.New("x")), ExitConfig},
		{AsFatalErr(nat.Wrap(nat.ParseFailure, "op", errors.New("x")), ExitConfig), ExitConfig},
	}
	for i, tc := range cases {
		if s := ExitStatusFor(tc.err); s != tc.status {
			t.Errorf("%d: ExitStatusFor(%v) = %d, expected %d", i, tc.err, s, tc.status)
		}
	}
}
