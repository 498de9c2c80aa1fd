// Copyright (C) 2016 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package svcutil

import (
	"context"
	"errors"

	"github.com/syncthing/portmap/lib/nat"
)

type FatalErr struct {
	Err    error
	Status ExitStatus
}

// AsFatalErr wraps the given error creating a FatalErr. If the given error
// already is of type FatalErr, it is not wrapped again.
func AsFatalErr(err error, status ExitStatus) *FatalErr {
	var ferr *FatalErr
	if errors.As(err, &ferr) {
		return ferr
	}
	return &FatalErr{
		Err:    err,
		Status: status,
	}
}

func (e *FatalErr) Error() string {
	return e.Err.Error()
}

func (e *FatalErr) Unwrap() error {
	return e.Err
}

type ExitStatus int

const (
	ExitSuccess ExitStatus = 0
	ExitError   ExitStatus = 1
	ExitInput   ExitStatus = 2
	ExitConfig  ExitStatus = 3
)

func (s ExitStatus) AsInt() int {
	return int(s)
}

// ExitStatusFor picks the process exit status for err. A FatalErr keeps its
// own status; otherwise the status follows the failure kind.
func ExitStatusFor(err error) ExitStatus {
	if err == nil {
		return ExitSuccess
	}
	var ferr *FatalErr
	if errors.As(err, &ferr) {
		return ferr.Status
	}
	switch nat.KindOf(err) {
	case nat.ParseFailure:
		return ExitInput
	case nat.ConfigurationFailure:
		return ExitConfig
	default:
		return ExitError
	}
}

// CallWithContext calls fn, returning early with the context error if ctx
// is done first. fn keeps running in the background in that case.
func CallWithContext(ctx context.Context, fn func() error) error {
	var err error
	done := make(chan struct{})
	go func() {
		err = fn()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
