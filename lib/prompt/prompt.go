// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package prompt reads typed answers from an interactive console.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/syncthing/portmap/lib/nat"
)

var ErrOutOfRange = errors.New("value out of range")

// A Prompter writes prompts to out and reads one line of input per prompt.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Printf writes to the prompt output.
func (p *Prompter) Printf(format string, vals ...interface{}) {
	fmt.Fprintf(p.out, format, vals...)
}

// Println writes a line to the prompt output.
func (p *Prompter) Println(vals ...interface{}) {
	fmt.Fprintln(p.out, vals...)
}

// readLine returns the next line without the trailing newline. A final
// line without newline is returned as is; io.EOF is only returned when
// there is no input left at all.
func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Choice prints label and returns the raw answer.
func (p *Prompter) Choice(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	return p.readLine()
}

// String prints label with its default and returns the answer, or def
// when the answer is blank.
func (p *Prompter) String(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return def, nil
	}
	return line, nil
}

// Int prints label with its default and parses the answer as an integer.
// A blank answer returns def.
func (p *Prompter) Int(label string, def int) (int, error) {
	fmt.Fprintf(p.out, "%s [%d]: ", label, def)
	line, err := p.readLine()
	if err != nil {
		return 0, err
	}
	return parseInt(line, def)
}

// Port is like Int but only accepts valid port numbers.
func (p *Prompter) Port(label string, def int) (int, error) {
	port, err := p.Int(label, def)
	if err != nil {
		return 0, err
	}
	if port < 1 || port > 65535 {
		return 0, &nat.Error{Kind: nat.ParseFailure, Op: label, Err: fmt.Errorf("%w: %d", ErrOutOfRange, port)}
	}
	return port, nil
}

// Selection prints the protocol menu and parses the answer. A blank
// answer returns def when def is a valid selection and fails otherwise.
func (p *Prompter) Selection(label string, def nat.Selection) (nat.Selection, error) {
	fmt.Fprintln(p.out, "Select protocol:")
	fmt.Fprintln(p.out, "1. TCP")
	fmt.Fprintln(p.out, "2. UDP")
	fmt.Fprintln(p.out, "3. BOTH")
	if def.Protocols() != nil {
		fmt.Fprintf(p.out, "%s (1/2/3) [%d]: ", label, int(def))
	} else {
		fmt.Fprintf(p.out, "%s (1/2/3): ", label)
	}
	line, err := p.readLine()
	if err != nil {
		return 0, err
	}
	if line == "" && def.Protocols() != nil {
		return def, nil
	}
	return nat.ParseSelection(line)
}

func parseInt(line string, def int) (int, error) {
	if line == "" {
		return def, nil
	}
	v, err := strconv.Atoi(line)
	if err != nil {
		return 0, &nat.Error{Kind: nat.ParseFailure, Op: "parse integer", Err: err}
	}
	return v, nil
}
