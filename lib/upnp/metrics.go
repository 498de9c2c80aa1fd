// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package upnp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "portmap",
	Subsystem: "upnp",
	Name:      "actions_total",
	Help:      "Total number of SOAP actions sent to the gateway, per action and result.",
}, []string{"action", "result"})

const (
	resultSuccess = "success"
	resultFault   = "fault"
	resultFailure = "failure"
)
