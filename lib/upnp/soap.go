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
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/syncthing/portmap/lib/nat"
)

// UPnP error codes we act on.
const (
	errInvalidArgs                  = 402
	errSpecifiedArrayIndexInvalid   = 713
	errNoSuchEntryInArray           = 714
	errOnlyPermanentLeasesSupported = 725
)

// A SOAPError is a fault returned by the gateway for an action.
type SOAPError struct {
	Action      string
	Status      string
	Code        int
	Description string
}

func (e *SOAPError) Error() string {
	if e.Code == 0 {
		return e.Action + ": " + e.Status
	}
	return fmt.Sprintf("%s: UPnP error %d (%s)", e.Action, e.Code, e.Description)
}

// soapRequest posts the action to the control URL and returns the raw
// response body.
func soapRequest(ctx context.Context, client *http.Client, url, service, function, message string) ([]byte, error) {
	tpl := `<?xml version="1.0" ?>
	<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">
	<s:Body>%s</s:Body>
	</s:Envelope>
`
	var resp []byte

	body := fmt.Sprintf(tpl, message)

	req, err := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(body))
	if err != nil {
		return resp, nat.Wrap(nat.ConfigurationFailure, function, err)
	}
	req.Close = true
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("User-Agent", "portmap/1.0")
	req.Header["SOAPAction"] = []string{fmt.Sprintf(`"%s#%s"`, service, function)} // Enforce capitalization in header-entry for sensitive routers.
	req.Header.Set("Connection", "Close")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	l.Debugln("SOAP Request URL: " + url)
	l.Debugln("SOAP Action: " + req.Header.Get("SOAPAction"))
	l.Debugln("SOAP Request:\n\n" + body)

	r, err := client.Do(req)
	if err != nil {
		l.Debugln("SOAP do:", err)
		metricActionsTotal.WithLabelValues(function, resultFailure).Inc()
		return resp, nat.Wrap(nat.NetworkFailure, function, errors.Wrap(err, "SOAP request"))
	}

	resp, err = io.ReadAll(r.Body)
	r.Body.Close()
	l.Debugf("SOAP Response: %s\n\n%s\n\n", r.Status, resp)
	if err != nil {
		metricActionsTotal.WithLabelValues(function, resultFailure).Inc()
		return resp, nat.Wrap(nat.NetworkFailure, function, errors.Wrap(err, "reading SOAP response"))
	}

	if r.StatusCode >= 400 {
		serr := &SOAPError{Action: function, Status: r.Status}
		envelope := &soapErrorResponse{}
		if xml.Unmarshal(resp, envelope) == nil {
			serr.Code = envelope.ErrorCode
			serr.Description = strings.TrimSpace(envelope.ErrorDescription)
		}
		metricActionsTotal.WithLabelValues(function, resultFault).Inc()
		return resp, nat.Wrap(nat.ProtocolFailure, "", serr)
	}

	metricActionsTotal.WithLabelValues(function, resultSuccess).Inc()
	return resp, nil
}

// soapErrorCode returns the UPnP error code carried by err, or zero.
func soapErrorCode(err error) int {
	var serr *SOAPError
	if errors.As(err, &serr) {
		return serr.Code
	}
	return 0
}

type soapGetExternalIPAddressResponseEnvelope struct {
	XMLName xml.Name
	Body    soapGetExternalIPAddressResponseBody `xml:"Body"`
}

type soapGetExternalIPAddressResponseBody struct {
	XMLName                      xml.Name
	GetExternalIPAddressResponse getExternalIPAddressResponse `xml:"GetExternalIPAddressResponse"`
}

type getExternalIPAddressResponse struct {
	NewExternalIPAddress string `xml:"NewExternalIPAddress"`
}

type soapGetGenericPortMappingEntryResponseEnvelope struct {
	XMLName xml.Name
	Body    soapGetGenericPortMappingEntryResponseBody `xml:"Body"`
}

type soapGetGenericPortMappingEntryResponseBody struct {
	XMLName                            xml.Name
	GetGenericPortMappingEntryResponse getGenericPortMappingEntryResponse `xml:"GetGenericPortMappingEntryResponse"`
}

type getGenericPortMappingEntryResponse struct {
	XMLName                   xml.Name
	NewRemoteHost             string `xml:"NewRemoteHost"`
	NewExternalPort           int    `xml:"NewExternalPort"`
	NewProtocol               string `xml:"NewProtocol"`
	NewInternalPort           int    `xml:"NewInternalPort"`
	NewInternalClient         string `xml:"NewInternalClient"`
	NewEnabled                string `xml:"NewEnabled"`
	NewPortMappingDescription string `xml:"NewPortMappingDescription"`
	NewLeaseDuration          int    `xml:"NewLeaseDuration"`
}

type soapErrorResponse struct {
	ErrorCode        int    `xml:"Body>Fault>detail>UPnPError>errorCode"`
	ErrorDescription string `xml:"Body>Fault>detail>UPnPError>errorDescription"`
}
