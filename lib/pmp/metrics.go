// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package pmp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "portmap",
	Subsystem: "pmp",
	Name:      "requests_total",
	Help:      "Total number of NAT-PMP requests, per action and result.",
}, []string{"action", "result"})

const (
	actionExternalAddress = "external_address"
	actionMapTCP          = "map_tcp"
	actionMapUDP          = "map_udp"
	actionDeleteTCP       = "delete_tcp"
	actionDeleteUDP       = "delete_udp"

	resultSuccess = "success"
	resultFailure = "failure"
)

func observe(action string, err error) {
	if err != nil {
		metricRequestsTotal.WithLabelValues(action, resultFailure).Inc()
		return
	}
	metricRequestsTotal.WithLabelValues(action, resultSuccess).Inc()
}
