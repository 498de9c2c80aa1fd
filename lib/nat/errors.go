// Copyright (C) 2015 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package nat

import "errors"

// Kind classifies failures so the tools can report them uniformly.
type Kind int

const (
	UnknownFailure Kind = iota
	// NetworkFailure covers discovery failures and timeouts.
	NetworkFailure
	// ProtocolFailure covers malformed or negative gateway responses.
	ProtocolFailure
	// ParseFailure covers bad user input.
	ParseFailure
	// ConfigurationFailure covers a missing IPv4 gateway or interface.
	ConfigurationFailure
)

func (k Kind) String() string {
	switch k {
	case NetworkFailure:
		return "network failure"
	case ProtocolFailure:
		return "protocol failure"
	case ParseFailure:
		return "parse failure"
	case ConfigurationFailure:
		return "configuration failure"
	default:
		return "failure"
	}
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns err classified as kind, or nil if err is nil. An error that
// is already classified keeps its original kind.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var nerr *Error
	if errors.As(err, &nerr) {
		kind = nerr.Kind
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the failure kind of err, or UnknownFailure when err does
// not carry one.
func KindOf(err error) Kind {
	var nerr *Error
	if errors.As(err, &nerr) {
		return nerr.Kind
	}
	return UnknownFailure
}
