// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package lex

import (
	"bufio"
	"io"
	"sort"

	"github.com/gomake-project/gomake/internal/errs"
)

// anchor records that byte offset Offset in a Buffer begins at source
// Location Loc. Buffer.Loc walks forward from the nearest anchor rather
// than tracking a location per byte.
type anchor struct {
	Offset int
	Loc    errs.Location
}

// LineSource yields successive physical lines (without their trailing
// newline) from a makefile or an included file. A Buffer pulls from one of
// these on demand when a continuation or a define body needs more input
// than it currently holds.
type LineSource interface {
	// NextLine returns the next physical line and true, or ("", false) at EOF.
	NextLine() (string, bool)
}

// scannerSource adapts a bufio.Scanner to LineSource.
type scannerSource struct {
	sc *bufio.Scanner
}

// NewLineSource builds a LineSource over r, splitting on '\n'.
func NewLineSource(r io.Reader) LineSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &scannerSource{sc: sc}
}

func (s *scannerSource) NextLine() (string, bool) {
	if s.sc.Scan() {
		return s.sc.Text(), true
	}
	return "", false
}

// Buffer is a growable byte string with (offset, Location) anchors, per
// spec.md §3 ("Data buffer"). Physical lines are appended one at a time via
// Pull, each time recording a fresh anchor at the join point so Loc can
// report accurate line/column coordinates for any offset, including ones
// spanning several pulled lines (continuations, define bodies).
type Buffer struct {
	data    []byte
	anchors []anchor
	src     LineSource
	path    string
	lineNo  int // 1-based physical line number of the next Pull
	atEOF   bool
}

// NewBuffer creates an empty Buffer reading physical lines from src.
func NewBuffer(path string, src LineSource) *Buffer {
	return &Buffer{src: src, path: path, lineNo: 1}
}

// Len returns the number of bytes currently materialized in the buffer.
func (b *Buffer) Len() int { return len(b.data) }

// Bytes returns the buffer's current contents. The slice is invalidated by
// the next Pull.
func (b *Buffer) Bytes() []byte { return b.data }

// Pull appends the next physical line (plus a trailing '\n', appended even
// when the source's last line had none) to the buffer and returns whether a
// line was available.
func (b *Buffer) Pull() bool {
	if b.atEOF {
		return false
	}
	line, ok := b.src.NextLine()
	if !ok {
		b.atEOF = true
		return false
	}
	start := len(b.data)
	b.anchors = append(b.anchors, anchor{Offset: start, Loc: errs.Location{Path: b.path, Line: b.lineNo, Column: 0}})
	b.data = append(b.data, line...)
	b.data = append(b.data, '\n')
	b.lineNo++
	return true
}

// EnsureLen pulls additional physical lines until the buffer holds at least
// n bytes or no more input remains.
func (b *Buffer) EnsureLen(n int) {
	for len(b.data) < n {
		if !b.Pull() {
			return
		}
	}
}

// AtEOF reports whether the underlying LineSource is exhausted and every
// pulled byte has been consumed up to off.
func (b *Buffer) AtEOF(off int) bool {
	return b.atEOF && off >= len(b.data)
}

// Loc returns the source Location of the byte at offset off, per the
// round-trip invariant in spec.md §8.1: the anchor at or before off, plus
// Advance() over the text in between.
func (b *Buffer) Loc(off int) errs.Location {
	if len(b.anchors) == 0 {
		return errs.Location{Path: b.path, Line: b.lineNo, Column: 0}
	}
	i := sort.Search(len(b.anchors), func(i int) bool { return b.anchors[i].Offset > off }) - 1
	if i < 0 {
		i = 0
	}
	a := b.anchors[i]
	if off <= a.Offset {
		return a.Loc
	}
	return a.Loc.Advance(string(b.data[a.Offset:off]))
}
