// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/syncthing/portmap/lib/menu"
	"github.com/syncthing/portmap/lib/nat"
	"github.com/syncthing/portmap/lib/prompt"
	"github.com/syncthing/portmap/lib/upnp"
)

const defaultPort = 8080

// gatewayService is the part of *upnp.Service used by the menu.
type gatewayService interface {
	EachMapping(ctx context.Context, fn func(upnp.PortMappingEntry) error) error
	AddMappings(ctx context.Context, req upnp.AddRequest) ([]nat.Mapping, error)
	DeletePortMapping(ctx context.Context, proto nat.Protocol, externalPort int) error
}

type session struct {
	p           *prompt.Prompter
	svc         gatewayService
	client      string // default internal client address
	description string
	lease       time.Duration
}

// run loops over the menu until the user exits or input ends. Failures
// of individual actions are reported and the menu is shown again.
func (s *session) run(ctx context.Context) error {
	state := menu.MainMenu
	for state != menu.Exit {
		switch state {
		case menu.MainMenu:
			s.p.Println()
			s.p.Println("What would you like to do?")
			for _, opt := range menu.Options {
				s.p.Println(opt)
			}
			choice, err := s.p.Choice("Enter your choice")
			if errors.Is(err, io.EOF) {
				choice = "3"
			} else if err != nil {
				return err
			}
			next, ok := menu.Next(state, choice)
			if !ok {
				s.p.Println("Invalid option, please try again.")
			}
			state = next

		case menu.Listing:
			s.list(ctx)
			state, _ = menu.Next(state, "")

		case menu.Adding:
			if err := s.add(ctx); errors.Is(err, io.EOF) {
				state = menu.Exit
				continue
			} else if err != nil {
				return err
			}
			state, _ = menu.Next(state, "")
		}
	}
	s.p.Println("Exiting...")
	return nil
}

func (s *session) list(ctx context.Context) {
	s.p.Println("Listing port mappings...")
	err := s.svc.EachMapping(ctx, func(e upnp.PortMappingEntry) error {
		s.p.Println(e.String())
		return nil
	})
	if err != nil {
		s.p.Printf("Listing stopped: %v\n", err)
		return
	}
	s.p.Println("No more port mappings found.")
}

// add prompts for a mapping and requests it. Only end of input and
// unexpected prompt failures are returned; everything else is reported.
func (s *session) add(ctx context.Context) error {
	client, err := s.p.String("Enter internal IP", s.client)
	if err != nil {
		return err
	}
	internalPort, err := s.p.Port("Enter internal port", defaultPort)
	if err != nil {
		return s.invalid("Invalid port", err)
	}
	externalPort, err := s.p.Port("Enter external port", internalPort)
	if err != nil {
		return s.invalid("Invalid port", err)
	}
	sel, err := s.p.Selection("Enter your choice", 0)
	if err != nil {
		if nat.KindOf(err) == nat.ParseFailure {
			s.p.Println("Invalid protocol choice, please try again.")
			return nil
		}
		return err
	}

	mappings, err := s.svc.AddMappings(ctx, upnp.AddRequest{
		Selection:      sel,
		InternalClient: client,
		InternalPort:   internalPort,
		ExternalPort:   externalPort,
		Description:    s.description,
		Lease:          s.lease,
	})
	for _, m := range mappings {
		s.p.Printf("Added %s port mapping: external %d -> %s:%d\n", m.Protocol, m.ExternalPort, client, m.InternalPort)
	}
	if err != nil {
		s.p.Printf("Adding port mapping failed: %v\n", err)
	}
	return nil
}

func (s *session) invalid(msg string, err error) error {
	if nat.KindOf(err) != nat.ParseFailure {
		return err
	}
	s.p.Printf("%s: %v\n", msg, err)
	return nil
}

// remove prompts for an external port and protocol and deletes the
// matching mappings, TCP first. Any failure is returned.
func (s *session) remove(ctx context.Context) error {
	externalPort, err := s.p.Port("Enter external port", defaultPort)
	if err != nil {
		return err
	}
	sel, err := s.p.Selection("Enter your choice", 0)
	if err != nil {
		return err
	}
	for _, proto := range sel.Protocols() {
		if err := s.svc.DeletePortMapping(ctx, proto, externalPort); err != nil {
			return err
		}
		s.p.Printf("Removed %s port mapping: external %d\n", proto, externalPort)
	}
	return nil
}
