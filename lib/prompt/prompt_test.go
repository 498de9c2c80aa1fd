// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package prompt

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/syncthing/portmap/lib/nat"
)

func TestInt(t *testing.T) {
	cases := []struct {
		input    string
		expected int
		fails    bool
	}{
		{"\n", 8080, false},
		{"9090\n", 9090, false},
		{"  9090  \n", 9090, false},
		{"9090", 9090, false}, // no trailing newline
		{"abc\n", 0, true},
		{"80.5\n", 0, true},
	}

	for _, tc := range cases {
		out := new(bytes.Buffer)
		p := New(strings.NewReader(tc.input), out)
		v, err := p.Int("Enter internal port", 8080)
		if tc.fails {
			if nat.KindOf(err) != nat.ParseFailure {
				t.Errorf("%q: expected parse failure, got %v", tc.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tc.input, err)
			continue
		}
		if v != tc.expected {
			t.Errorf("%q: got %d, expected %d", tc.input, v, tc.expected)
		}
		if !strings.Contains(out.String(), "[8080]") {
			t.Errorf("prompt should show the default, got %q", out.String())
		}
	}
}

func TestPortRange(t *testing.T) {
	for _, input := range []string{"0\n", "65536\n", "-1\n"} {
		p := New(strings.NewReader(input), io.Discard)
		_, err := p.Port("port", 8080)
		if !errors.Is(err, ErrOutOfRange) || nat.KindOf(err) != nat.ParseFailure {
			t.Errorf("%q: expected out of range parse failure, got %v", input, err)
		}
	}
	p := New(strings.NewReader("65535\n"), io.Discard)
	if v, err := p.Port("port", 8080); err != nil || v != 65535 {
		t.Errorf("65535: got %d, %v", v, err)
	}
}

func TestSelection(t *testing.T) {
	cases := []struct {
		input    string
		def      nat.Selection
		expected nat.Selection
		fails    bool
	}{
		{"1\n", 0, nat.SelectTCP, false},
		{"2\n", 0, nat.SelectUDP, false},
		{"3\n", 0, nat.SelectBoth, false},
		{"\n", nat.SelectUDP, nat.SelectUDP, false},
		{"\n", 0, 0, true},
		{"4\n", nat.SelectTCP, 0, true},
		{"both\n", nat.SelectTCP, 0, true},
	}

	for _, tc := range cases {
		p := New(strings.NewReader(tc.input), io.Discard)
		sel, err := p.Selection("Enter your choice", tc.def)
		if tc.fails {
			if nat.KindOf(err) != nat.ParseFailure {
				t.Errorf("%q: expected parse failure, got %v", tc.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tc.input, err)
			continue
		}
		if sel != tc.expected {
			t.Errorf("%q: got %v, expected %v", tc.input, sel, tc.expected)
		}
	}
}

func TestString(t *testing.T) {
	p := New(strings.NewReader("\n10.0.0.7\n"), io.Discard)
	v, err := p.String("Enter internal IP", "192.168.1.42")
	if err != nil || v != "192.168.1.42" {
		t.Errorf("blank answer: got %q, %v", v, err)
	}
	v, err = p.String("Enter internal IP", "192.168.1.42")
	if err != nil || v != "10.0.0.7" {
		t.Errorf("explicit answer: got %q, %v", v, err)
	}
}

func TestEOF(t *testing.T) {
	p := New(strings.NewReader(""), io.Discard)
	if _, err := p.Int("port", 8080); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
	if _, err := p.Choice("choice"); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestSequentialPrompts(t *testing.T) {
	p := New(strings.NewReader("1234\n\n3\n"), io.Discard)
	internal, err := p.Port("internal", 8080)
	if err != nil {
		t.Fatal(err)
	}
	external, err := p.Port("external", internal)
	if err != nil {
		t.Fatal(err)
	}
	sel, err := p.Selection("protocol", nat.SelectTCP)
	if err != nil {
		t.Fatal(err)
	}
	if internal != 1234 || external != 1234 || sel != nat.SelectBoth {
		t.Errorf("got %d %d %v", internal, external, sel)
	}
}
