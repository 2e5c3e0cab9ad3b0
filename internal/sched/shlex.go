// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package sched

import "github.com/google/shlex"

// shlexSplit wraps google/shlex's POSIX word splitter, the dependency
// named in spec.md §4.9/§4.10 for shell-avoidance tokenization.
func shlexSplit(line string) ([]string, error) {
	return shlex.Split(line)
}
