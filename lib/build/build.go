// Copyright (C) 2019 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package build holds version information injected at link time.
package build

import (
	"fmt"
	"regexp"
	"runtime"
	"strconv"
	"time"
)

var (
	// Injected by the linker, -X github.com/syncthing/portmap/lib/build.Version=v1.2.3
	Version = "unknown-dev"
	Stamp   = "0" // Unix seconds

	releaseExp = regexp.MustCompile(`^v\d+\.\d+\.\d+$`)
)

// IsRelease reports whether Version is a plain vX.Y.Z release.
func IsRelease() bool {
	return releaseExp.MatchString(Version)
}

// Date returns the build time, or the Unix epoch when it was not set.
func Date() time.Time {
	stamp, _ := strconv.ParseInt(Stamp, 10, 64)
	return time.Unix(stamp, 0).UTC()
}

// LongVersion returns a one line description of the given program's build,
// suitable for --version output.
func LongVersion(program string) string {
	v := fmt.Sprintf("%s %s (%s %s-%s) %s", program, Version, runtime.Version(), runtime.GOOS, runtime.GOARCH, Date().Format("2006-01-02 15:04:05 MST"))
	if !IsRelease() {
		v += " [dev]"
	}
	return v
}
