// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package gomake

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gomake-project/gomake/internal/graph"
	"github.com/gomake-project/gomake/internal/sched"
)

// fsStat implements graph.FileSystem over the real filesystem.
type fsStat struct{}

func (fsStat) Stat(path string) *time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	t := info.ModTime()
	return &t
}

// globFn implements the $(wildcard) and rule-header glob collaborator,
// grounded on the teacher's util.go wildcardGlob (space-separated patterns
// joined into filepath.Glob calls), adapted to the (dir, pattern) shape
// graph/expand need so a word's directory component isn't re-globbed.
func globFn(dir, pat string) ([]string, error) {
	full := filepath.Join(dir, pat)
	matches, err := filepath.Glob(full)
	if err != nil {
		return nil, err
	}
	if dir == "." || dir == "" {
		return matches, nil
	}
	return matches, nil
}

// shellFn implements $(shell ...), grounded on the teacher's util.go
// runShellCapture, switched to honoring $SHELL instead of a hardcoded "sh".
func shellFn(cmd string) (string, error) {
	shellBin := os.Getenv("SHELL")
	if shellBin == "" {
		shellBin = "/bin/sh"
	}
	out, err := exec.Command(shellBin, "-c", cmd).Output()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return string(out), nil
		}
		return "", err
	}
	return string(out), nil
}

// selfReentry builds the sched.SelfReentry collaborator that recognizes a
// recipe line invoking this tool's own binary (via $(MAKE)) and re-enters
// it in-process rather than spawning a child, per spec.md §4.9.
func selfReentry(makeVar string) sched.SelfReentry {
	return func(argv []string, env []string, cwd string) (bool, error) {
		if len(argv) == 0 {
			return false, nil
		}
		first := firstWord(argv[0])
		if first != makeVar && filepath.Base(first) != filepath.Base(makeVar) {
			return false, nil
		}
		rest := argv[1:]
		if len(argv) == 1 {
			rest = strings.Fields(argv[0])
			if len(rest) > 0 {
				rest = rest[1:]
			}
		}
		opts := OptionsFromArgs(rest)
		opts.Dir = cwd
		opts.Env = env
		return true, Run(opts)
	}
}

func firstWord(s string) string {
	s = strings.TrimLeft(s, " \t")
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i]
	}
	return s
}

var _ graph.FileSystem = fsStat{}
