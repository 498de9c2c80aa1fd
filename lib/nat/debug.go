// Copyright (C) 2015 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package nat

import (
	"context"
	"time"

	"github.com/syncthing/portmap/lib/logger"
)

var l = logger.DefaultLogger.NewFacility("nat", "Port mapping requests")

// LogMappings logs the outcome of a mapping request at debug level.
func LogMappings(ctx context.Context, source string, started time.Time, mappings []Mapping, err error) {
	if ctx.Err() != nil {
		l.Debugf("%s: request cancelled after %v", source, time.Since(started))
		return
	}
	for _, m := range mappings {
		l.Debugf("%s: granted %v", source, m)
	}
	if err != nil {
		l.Debugf("%s: %v after %v (%v)", source, KindOf(err), time.Since(started), err)
	}
}
