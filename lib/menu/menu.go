// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package menu implements the states of the interactive UPnP session,
// independent of any console I/O.
package menu

import "fmt"

type State int

const (
	MainMenu State = iota
	Listing
	Adding
	Exit
)

func (s State) String() string {
	switch s {
	case MainMenu:
		return "main menu"
	case Listing:
		return "listing"
	case Adding:
		return "adding"
	case Exit:
		return "exit"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options are the main menu entries, in display order.
var Options = []string{
	"1. List existing port mappings",
	"2. Add a new port mapping",
	"3. Exit",
}

// Next returns the state following s given the user's input. The boolean
// is false when the input was not a valid choice, in which case the state
// is unchanged. Listing and Adding always return to the main menu, and
// Exit is terminal.
func Next(s State, input string) (State, bool) {
	switch s {
	case MainMenu:
		switch input {
		case "1":
			return Listing, true
		case "2":
			return Adding, true
		case "3":
			return Exit, true
		}
		return MainMenu, false
	case Listing, Adding:
		return MainMenu, true
	default:
		return Exit, true
	}
}
