// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command upnp-tool finds a UPnP internet gateway and offers a menu to list
// and add port mappings on it.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/syncthing/portmap/lib/build"
	"github.com/syncthing/portmap/lib/logger"
	"github.com/syncthing/portmap/lib/netutil"
	"github.com/syncthing/portmap/lib/prompt"
	"github.com/syncthing/portmap/lib/svcutil"
	"github.com/syncthing/portmap/lib/upnp"
)

var l = logger.DefaultLogger.NewFacility("main", "Interactive session")

type CLI struct {
	Version       kong.VersionFlag `help:"Show version and exit"`
	SearchTarget  string           `help:"SSDP search target" default:"urn:schemas-upnp-org:service:WANIPConnection:1" env:"UPNP_SEARCH_TARGET"`
	Timeout       time.Duration    `help:"Discovery timeout" default:"3s" env:"UPNP_TIMEOUT"`
	Description   string           `help:"Description stored with new mappings" default:"InteractiveMapping"`
	Lease         time.Duration    `help:"Lease duration of new mappings; zero means permanent" default:"0s"`
	Delete        bool             `help:"Remove a mapping instead of opening the menu"`
	Debug         bool             `help:"Enable debug logging for all facilities"`
	MetricsListen string           `help:"Serve Prometheus metrics on this address while running" env:"METRICS_LISTEN" placeholder:"ADDR"`
}

func main() {
	var params CLI
	kong.Parse(&params,
		kong.Description("Interactively list and add port mappings using UPnP."),
		kong.Vars{"version": build.LongVersion("upnp-tool")},
	)

	if err := params.Run(context.Background(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(svcutil.ExitStatusFor(err).AsInt())
	}
}

func (c *CLI) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if c.Debug {
		logger.EnableAllDebug(logger.DefaultLogger)
	}
	if c.MetricsListen != "" {
		go serveMetrics(c.MetricsListen)
	}

	igd, err := upnp.Discover(ctx, c.SearchTarget, c.Timeout)
	if err != nil {
		l.Debugln("Discovery:", err)
		fmt.Fprintln(out, "No UPnP device found.")
		return nil
	}
	fmt.Fprintf(out, "Found device: %s\n", igd.FriendlyName())
	l.Debugf("Using %s (%s) described at %s", igd.ID(), igd.FriendlyIdentifier(), igd.Location())

	svc := igd.Service()
	ip, err := svc.ExternalIPAddress(ctx)
	if err != nil {
		l.Warnln("Getting external IP address:", err)
	}
	if ip == nil {
		fmt.Fprintln(out, "External IP Address: Unknown")
	} else {
		fmt.Fprintf(out, "External IP Address: %s\n", ip)
	}

	s := &session{
		p:           prompt.New(in, out),
		svc:         svc,
		client:      igd.LocalIP().String(),
		description: c.Description,
		lease:       c.Lease,
	}
	if info, err := (&netutil.Locator{}).Locate(ctx); err == nil {
		s.client = info.InternalIP.String()
	} else {
		l.Debugln("Locating gateway, using the IGD facing address instead:", err)
	}

	if c.Delete {
		return s.remove(ctx)
	}
	return s.run(ctx)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		l.Warnln("Metrics listener:", err)
	}
}
