// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command natpmp-tool asks the default gateway for its external address
// over NAT-PMP and then adds the port mappings entered at the prompts.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/syncthing/portmap/lib/build"
	"github.com/syncthing/portmap/lib/logger"
	"github.com/syncthing/portmap/lib/nat"
	"github.com/syncthing/portmap/lib/netutil"
	"github.com/syncthing/portmap/lib/pmp"
	"github.com/syncthing/portmap/lib/prompt"
	"github.com/syncthing/portmap/lib/svcutil"
)

var l = logger.DefaultLogger.NewFacility("main", "Interactive session")

const (
	defaultPort = 8080
	defaultTTL  = 3600
)

type CLI struct {
	Version       kong.VersionFlag `help:"Show version and exit"`
	Gateway       string           `help:"Gateway address; the default gateway is used when empty" env:"NATPMP_GATEWAY" placeholder:"IP"`
	Timeout       time.Duration    `help:"Initial NAT-PMP request timeout; zero uses the library default" env:"NATPMP_TIMEOUT"`
	Delete        bool             `help:"Remove mappings instead of adding them"`
	Debug         bool             `help:"Enable debug logging for all facilities"`
	MetricsListen string           `help:"Serve Prometheus metrics on this address while running" env:"METRICS_LISTEN" placeholder:"ADDR"`
}

// requester is the part of *pmp.Client used by the prompts.
type requester interface {
	ExternalAddress(ctx context.Context) (net.IP, error)
	CreateMappings(ctx context.Context, req pmp.Request) ([]nat.Mapping, error)
	DeleteMapping(ctx context.Context, proto nat.Protocol, internalPort int) error
}

func main() {
	var params CLI
	kong.Parse(&params,
		kong.Description("Interactively add port mappings using NAT-PMP."),
		kong.Vars{"version": build.LongVersion("natpmp-tool")},
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

	loc := &netutil.Locator{}
	if c.Gateway != "" {
		loc.Gateway = net.ParseIP(c.Gateway)
		if loc.Gateway == nil {
			return svcutil.AsFatalErr(fmt.Errorf("invalid gateway address %q", c.Gateway), svcutil.ExitInput)
		}
	}
	info, err := loc.Locate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Gateway: %s (local address %s on %s)\n", info.Gateway, info.InternalIP, info.Interface)

	client, err := pmp.New(info.Gateway, c.Timeout)
	if err != nil {
		return err
	}

	return run(ctx, prompt.New(in, out), client, c.Delete)
}

// run performs one pass: external address, prompts, mapping requests.
func run(ctx context.Context, p *prompt.Prompter, r requester, remove bool) error {
	ip, err := r.ExternalAddress(ctx)
	if err != nil {
		return err
	}
	p.Printf("External IP Address: %s\n", ip)

	internalPort, err := p.Port("Enter internal port", defaultPort)
	if err != nil {
		return err
	}

	if remove {
		sel, err := p.Selection("Enter your choice", 0)
		if err != nil {
			return err
		}
		for _, proto := range sel.Protocols() {
			if err := r.DeleteMapping(ctx, proto, internalPort); err != nil {
				return err
			}
			p.Printf("Port mapping removed (%s): internal %d\n", proto, internalPort)
		}
		return nil
	}

	externalPort, err := p.Port("Enter external port", defaultPort)
	if err != nil {
		return err
	}
	sel, err := p.Selection("Enter your choice", 0)
	if err != nil {
		return err
	}
	ttl, err := p.Int("Enter TTL in seconds", defaultTTL)
	if err != nil {
		return err
	}

	mappings, err := r.CreateMappings(ctx, pmp.Request{
		Selection:    sel,
		InternalPort: internalPort,
		ExternalPort: externalPort,
		Lifetime:     time.Duration(ttl) * time.Second,
	})
	for _, m := range mappings {
		p.Printf("Port mapped (%s): external %d -> internal %d for %v\n", m.Protocol, m.ExternalPort, m.InternalPort, m.Lifetime)
	}
	return err
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		l.Warnln("Metrics listener:", err)
	}
}
