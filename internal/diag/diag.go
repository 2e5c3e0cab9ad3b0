// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

// Package diag implements the --debug-log FILE collaborator named in
// spec.md §1/§6: a place to accumulate diagnostic trace lines (variable
// lookups, implicit-rule search decisions, warnings) and flush them
// atomically, grounded on the aretext example's file/save.go use of
// google/renameio for crash-safe file writes (the same library for the
// same reason: a reader must never observe a half-written file).
package diag

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/google/renameio/v2"
)

// Log accumulates debug trace lines in memory and flushes them to a file
// atomically on Close, so a build killed mid-run never leaves a
// truncated or interleaved log behind.
type Log struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	path string
}

// NewLog creates a Log that writes to path on Close. An empty path
// disables logging; every method becomes a no-op.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Enabled reports whether this Log writes anywhere.
func (l *Log) Enabled() bool { return l.path != "" }

// Printf appends a formatted trace line.
func (l *Log) Printf(format string, args ...any) {
	if l == nil || l.path == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(&l.buf, format, args...)
	l.buf.WriteByte('\n')
}

// Close flushes the accumulated log to disk via an atomic rename,
// leaving no trace if nothing was ever logged.
func (l *Log) Close() error {
	if l == nil || l.path == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buf.Len() == 0 {
		return nil
	}
	return renameio.WriteFile(l.path, l.buf.Bytes(), 0o644)
}
