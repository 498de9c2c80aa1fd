// Copyright (C) 2019 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package build

import (
	"strings"
	"testing"
	"time"
)

func TestIsRelease(t *testing.T) {
	cases := []struct {
		v       string
		release bool
	}{
		{"v1.2.3", true},
		{"v10.0.0", true},
		{"v1.2.3-rc.1", false},
		{"v1.2.3+4-gabcdef", false},
		{"unknown-dev", false},
	}

	old := Version
	defer func() { Version = old }()
	for _, tc := range cases {
		Version = tc.v
		if IsRelease() != tc.release {
			t.Errorf("IsRelease(%q) = %v, expected %v", tc.v, !tc.release, tc.release)
		}
	}
}

func TestLongVersion(t *testing.T) {
	oldV, oldS := Version, Stamp
	defer func() { Version, Stamp = oldV, oldS }()
	Version = "v1.0.0"
	Stamp = "1700000000"

	if !Date().Equal(time.Unix(1700000000, 0)) {
		t.Errorf("unexpected date %v", Date())
	}
	lv := LongVersion("upnp-tool")
	if !strings.HasPrefix(lv, "upnp-tool v1.0.0 (") || !strings.HasSuffix(lv, "2023-11-14 22:13:20 UTC") {
		t.Errorf("unexpected long version %q", lv)
	}

	Version = "v1.0.0-rc.1"
	if lv := LongVersion("upnp-tool"); !strings.HasSuffix(lv, " [dev]") {
		t.Errorf("non-release build should be marked, got %q", lv)
	}
}
