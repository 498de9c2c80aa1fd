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

package upnp

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/syncthing/portmap/lib/nat"
)

// ErrNoMoreEntries is returned when the gateway reports that there is no
// port mapping entry at the requested index.
var ErrNoMoreEntries = errors.New("no more port mapping entries")

// A Service is the WAN connection service of an IGD.
type Service struct {
	URL    string
	URN    string
	client *http.Client
}

func NewService(url, urn string, client *http.Client) *Service {
	if client == nil {
		client = http.DefaultClient
	}
	return &Service{
		URL:    url,
		URN:    urn,
		client: client,
	}
}

// A PortMappingEntry is one row of the gateway's port mapping table.
type PortMappingEntry struct {
	Index          int
	RemoteHost     string
	ExternalPort   int
	Protocol       nat.Protocol
	InternalClient string
	InternalPort   int
	Enabled        bool
	Description    string
	LeaseDuration  time.Duration
}

func (e PortMappingEntry) String() string {
	return fmt.Sprintf("Mapping #%d: %d:%s -> %s:%d (%s)", e.Index, e.ExternalPort, e.Protocol, e.InternalClient, e.InternalPort, e.Description)
}

// An AddRequest asks for one mapping per selected protocol.
type AddRequest struct {
	Selection      nat.Selection
	InternalClient string
	InternalPort   int
	ExternalPort   int
	Description    string
	Lease          time.Duration
}

// Action invokes the named action with args as the inner XML of the
// action element and returns the raw response.
func (s *Service) Action(ctx context.Context, action, args string) ([]byte, error) {
	body := fmt.Sprintf("<u:%s xmlns:u=\"%s\">%s</u:%s>", action, s.URN, args, action)
	return soapRequest(ctx, s.client, s.URL, s.URN, action, body)
}

// ExternalIPAddress queries the service for its external IP address.
// Returns nil if the external IP address is invalid or undefined.
func (s *Service) ExternalIPAddress(ctx context.Context) (net.IP, error) {
	response, err := s.Action(ctx, "GetExternalIPAddress", "")
	if err != nil {
		return nil, err
	}

	envelope := &soapGetExternalIPAddressResponseEnvelope{}
	if err := xml.Unmarshal(response, envelope); err != nil {
		return nil, nat.Wrap(nat.ProtocolFailure, "GetExternalIPAddress", err)
	}

	return net.ParseIP(strings.TrimSpace(envelope.Body.GetExternalIPAddressResponse.NewExternalIPAddress)), nil
}

// PortMappingEntry fetches the entry at index. It returns ErrNoMoreEntries
// when the gateway says the index is past the end of its table, and any
// other error, including transport failures, as is.
func (s *Service) PortMappingEntry(ctx context.Context, index int) (PortMappingEntry, error) {
	if index < 0 || index > math.MaxUint16 {
		return PortMappingEntry{}, errors.Wrapf(ErrNoMoreEntries, "index %d", index)
	}

	args := fmt.Sprintf("<NewPortMappingIndex>%d</NewPortMappingIndex>", index)
	response, err := s.Action(ctx, "GetGenericPortMappingEntry", args)
	if err != nil {
		// Some gateways answer past the end of the table with a bare HTTP
		// error carrying no UPnP error code.
		var serr *SOAPError
		if errors.As(err, &serr) {
			switch serr.Code {
			case 0, errSpecifiedArrayIndexInvalid, errNoSuchEntryInArray, errInvalidArgs:
				return PortMappingEntry{}, errors.Wrapf(ErrNoMoreEntries, "index %d: %v", index, serr)
			}
		}
		return PortMappingEntry{}, err
	}

	envelope := &soapGetGenericPortMappingEntryResponseEnvelope{}
	if err := xml.Unmarshal(response, envelope); err != nil {
		return PortMappingEntry{}, nat.Wrap(nat.ProtocolFailure, "GetGenericPortMappingEntry", err)
	}
	r := envelope.Body.GetGenericPortMappingEntryResponse
	if r.XMLName.Local == "" {
		return PortMappingEntry{}, nat.Wrap(nat.ProtocolFailure, "GetGenericPortMappingEntry", errors.New("response element missing"))
	}

	return PortMappingEntry{
		Index:          index,
		RemoteHost:     strings.TrimSpace(r.NewRemoteHost),
		ExternalPort:   r.NewExternalPort,
		Protocol:       nat.Protocol(strings.ToUpper(strings.TrimSpace(r.NewProtocol))),
		InternalClient: strings.TrimSpace(r.NewInternalClient),
		InternalPort:   r.NewInternalPort,
		Enabled:        strings.TrimSpace(r.NewEnabled) == "1",
		Description:    strings.TrimSpace(r.NewPortMappingDescription),
		LeaseDuration:  time.Duration(r.NewLeaseDuration) * time.Second,
	}, nil
}

// EachMapping calls fn for the entries at index 0, 1, 2... until the
// gateway reports the end of its table, fn returns an error, or a request
// fails. Reaching the end of the table is not an error.
func (s *Service) EachMapping(ctx context.Context, fn func(PortMappingEntry) error) error {
	for index := 0; ; index++ {
		entry, err := s.PortMappingEntry(ctx, index)
		if errors.Is(err, ErrNoMoreEntries) {
			l.Debugln("End of port mapping table at index", index)
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
}

// ListMappings returns all entries of the port mapping table in index
// order. On failure the entries read so far are returned with the error.
func (s *Service) ListMappings(ctx context.Context) ([]PortMappingEntry, error) {
	var entries []PortMappingEntry
	err := s.EachMapping(ctx, func(e PortMappingEntry) error {
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

// AddMappings adds a mapping for each protocol of the selection, TCP
// first. The first failure stops the sequence and nothing is rolled back;
// mappings added before the failure are returned with the error.
func (s *Service) AddMappings(ctx context.Context, req AddRequest) ([]nat.Mapping, error) {
	protocols := req.Selection.Protocols()
	if len(protocols) == 0 {
		return nil, nat.Wrap(nat.ParseFailure, "AddPortMapping", fmt.Errorf("invalid protocol selection %v", req.Selection))
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	var mappings []nat.Mapping
	for _, proto := range protocols {
		lease, err := s.addPortMapping(ctx, proto, req)
		if err != nil {
			nat.LogMappings(ctx, s.URL, started, mappings, err)
			return mappings, err
		}
		mappings = append(mappings, nat.Mapping{
			Protocol:     proto,
			InternalPort: req.InternalPort,
			ExternalPort: req.ExternalPort,
			Lifetime:     lease,
		})
	}
	nat.LogMappings(ctx, s.URL, started, mappings, nil)
	return mappings, nil
}

func (s *Service) addPortMapping(ctx context.Context, proto nat.Protocol, req AddRequest) (time.Duration, error) {
	_, err := s.Action(ctx, "AddPortMapping", portMappingArgs(proto, req))
	if err != nil && req.Lease > 0 && soapErrorCode(err) == errOnlyPermanentLeasesSupported {
		l.Debugln(s.URL, "only supports permanent leases, retrying", proto, "without lease")
		req.Lease = 0
		_, err = s.Action(ctx, "AddPortMapping", portMappingArgs(proto, req))
	}
	return req.Lease, err
}

// DeletePortMapping deletes a port mapping from the service.
func (s *Service) DeletePortMapping(ctx context.Context, proto nat.Protocol, externalPort int) error {
	const template = `<NewRemoteHost></NewRemoteHost>
	<NewExternalPort>%d</NewExternalPort>
	<NewProtocol>%s</NewProtocol>`
	_, err := s.Action(ctx, "DeletePortMapping", fmt.Sprintf(template, externalPort, proto))
	return err
}

func (r AddRequest) validate() error {
	if net.ParseIP(r.InternalClient).To4() == nil {
		return nat.Wrap(nat.ParseFailure, "AddPortMapping", fmt.Errorf("invalid internal client address %q", r.InternalClient))
	}
	for _, port := range []int{r.InternalPort, r.ExternalPort} {
		if port < 1 || port > math.MaxUint16 {
			return nat.Wrap(nat.ParseFailure, "AddPortMapping", fmt.Errorf("invalid port %d", port))
		}
	}
	return nil
}

// portMappingArgs builds the AddPortMapping arguments for one protocol.
func portMappingArgs(proto nat.Protocol, req AddRequest) string {
	const template = `<NewRemoteHost></NewRemoteHost>
	<NewExternalPort>%d</NewExternalPort>
	<NewProtocol>%s</NewProtocol>
	<NewInternalPort>%d</NewInternalPort>
	<NewInternalClient>%s</NewInternalClient>
	<NewEnabled>1</NewEnabled>
	<NewPortMappingDescription>%s</NewPortMappingDescription>
	<NewLeaseDuration>%d</NewLeaseDuration>`
	return fmt.Sprintf(template, req.ExternalPort, proto, req.InternalPort, req.InternalClient, html.EscapeString(req.Description), req.Lease/time.Second)
}
