// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

// Package gomake is the root wiring layer: it owns the restart loop of
// spec.md §4.8, seeds the ambient variables spec.md §6 names (CURDIR, MAKE,
// MAKELEVEL, MAKE_RESTARTS, SHELL), and wires the internal/graph engine to
// its filesystem, glob, shell, and process-scheduling collaborators.
// Grounded on the teacher's cmd/mk/main.go run() function (flag handling,
// variable-override scanning, single top-level build invocation), split
// here into a library Run the CLI front-end in cmd/gomake calls.
package gomake

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gomake-project/gomake/internal/diag"
	"github.com/gomake-project/gomake/internal/errs"
	"github.com/gomake-project/gomake/internal/expand"
	"github.com/gomake-project/gomake/internal/graph"
	"github.com/gomake-project/gomake/internal/parse"
	"github.com/gomake-project/gomake/internal/sched"
)

// Options is everything a top-level (or self-reentrant sub-make) build
// needs, assembled by cmd/gomake from flags, environment, and argv.
type Options struct {
	Dir              string   // absolute working directory; "" means the process cwd
	MakefilePath     string   // explicit -f/--file value; "" searches default names
	Goals            []string // explicit build targets; empty means the default goal
	CommandLineVars  []string // "VAR=value" / "VAR:=value" words from argv
	Jobs             int      // -j value; < 1 means serial (spec.md §4.9)
	DebugLogPath     string   // --debug-log FILE; "" disables it
	NoPrintDirectory bool
	Env              []string // sub-make environment; only its MAKELEVEL entry is read, variables still come from os.Environ()
	// FlagsString is the short+long MAKEFLAGS text the CLI front-end
	// assembled from the flags actually given (e.g. "j2" or
	// "j2 --no-print-directory"), reused verbatim for sub-makes.
	FlagsString string
}

// OptionsFromArgs builds a minimal Options from a recipe-line argv seen by
// SelfReentry: every "=" word is a command-line variable, everything else
// that isn't a flag is a goal. A full top-level invocation instead goes
// through cmd/gomake's pflag-based parser.
func OptionsFromArgs(args []string) Options {
	var opts Options
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			continue
		}
		if strings.Contains(a, "=") {
			opts.CommandLineVars = append(opts.CommandLineVars, a)
			continue
		}
		opts.Goals = append(opts.Goals, a)
	}
	return opts
}

// Run parses the makefile, applies the restart loop, and builds opts.Goals
// (or the discovered default goal), per spec.md §4.3/§4.7/§4.8.
func Run(opts Options) error {
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = wd
	}

	makefilePath, err := resolveMakefilePath(dir, opts.MakefilePath)
	if err != nil {
		return err
	}

	dlog := diag.NewLog(opts.DebugLogPath)
	defer dlog.Close()

	level := 0
	if lv := lookupEnv(opts.Env, "MAKELEVEL"); lv != "" {
		if n, err := strconv.Atoi(lv); err == nil {
			level = n
		}
	}

	for restarts := 0; ; restarts++ {
		mf := graph.New(dir)
		mf.MakeLevel = level
		mf.RestartCount = restarts
		mf.FlagsString = opts.FlagsString
		mf.Stdout = os.Stdout
		mf.FS = fsStat{}
		mf.Glob = globFn
		mf.Shell = shellFn
		mf.WarnFn = func(loc errs.Location, format string, args ...any) {
			warnFn(loc, format, args...)
			dlog.Printf("warning: %s: %s", loc.String(), fmt.Sprintf(format, args...))
		}
		mf.DebugFn = dlog.Printf
		mf.Global.SetDebugFn(dlog.Printf)

		jobs := opts.Jobs
		if jobs < 1 {
			jobs = 1
		}
		ctx := sched.NewContext(jobs)
		ctx.Self = selfReentry(makeValue())
		reg := sched.NewRegistry()
		reg.Add(ctx)
		mf.Scheduler = ctx
		mf.PrepareCmd = sched.PrepareCommand

		seedAmbientVars(mf, opts, restarts)

		for _, kv := range opts.CommandLineVars {
			if err := parse.ApplyCommandLineAssignment(mf, kv); err != nil {
				return err
			}
		}

		p := parse.New(mf)
		if err := p.ParseFile(makefilePath); err != nil {
			return err
		}
		applyDefaultGoalVar(mf)

		remade, err := remakeMakefiles(mf, reg)
		if err != nil {
			return err
		}
		if remade {
			continue
		}

		goals := opts.Goals
		if len(goals) == 0 {
			if mf.DefaultTarget == "" {
				return errs.New(errs.Resolution, errs.Location{}, "no targets specified and no default goal found in %s", makefilePath)
			}
			goals = []string{mf.DefaultTarget}
		}

		return build(mf, reg, goals)
	}
}

func build(mf *graph.Makefile, reg *sched.Registry, goals []string) error {
	var finalErr error
	chainGoals(mf, goals, 0, func(err error) { finalErr = err })
	reg.Spin()
	return finalErr
}

func chainGoals(mf *graph.Makefile, goals []string, idx int, cb func(error)) {
	if idx >= len(goals) {
		cb(nil)
		return
	}
	t := mf.GetOrCreate(goals[idx])
	mf.Make(t, nil, false, func(_ bool, err error) {
		if err != nil {
			cb(err)
			return
		}
		chainGoals(mf, goals, idx+1, cb)
	})
}

// remakeMakefiles implements spec.md §4.8: if any parsed makefile is also
// a buildable target (a rule exists for its own path) and that rule fires,
// the whole Makefile model is stale and the caller must restart from a
// fresh parse.
func remakeMakefiles(mf *graph.Makefile, reg *sched.Registry) (bool, error) {
	any := false
	for _, path := range mf.Includes {
		t, ok := mf.Targets[path]
		if !ok {
			t, ok = mf.Targets[filepath.Base(path)]
		}
		if !ok {
			continue
		}
		var buildErr error
		mf.Make(t, nil, false, func(did bool, err error) {
			buildErr = err
			if did {
				any = true
			}
		})
		reg.Spin()
		if buildErr != nil {
			return false, buildErr
		}
	}
	return any, nil
}

func resolveMakefilePath(dir, explicit string) (string, error) {
	if explicit != "" {
		if filepath.IsAbs(explicit) {
			return explicit, nil
		}
		return filepath.Join(dir, explicit), nil
	}
	for _, name := range []string{"GNUmakefile", "makefile", "Makefile"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errs.New(errs.Resolution, errs.Location{}, "no makefile found in %s (GNUmakefile, makefile, Makefile)", dir)
}

// seedAmbientVars populates the ambient variables named in spec.md §6, at
// Automatic (lowest) priority so a plain makefile assignment overrides
// them, matching the rest of spec.md §4.4's priority ladder.
func seedAmbientVars(mf *graph.Makefile, opts Options, restarts int) {
	g := mf.Global
	g.SetRaw("CURDIR", expand.Automatic, mf.WorkDir)
	g.SetRaw("MAKE", expand.Automatic, makeValue())
	if _, _, ok := g.Lookup("SHELL"); !ok {
		g.SetRaw("SHELL", expand.Automatic, "/bin/sh")
	}
	g.SetRaw("MAKELEVEL", expand.Automatic, strconv.Itoa(mf.MakeLevel))
	g.SetRaw("MAKE_RESTARTS", expand.Automatic, strconv.Itoa(restarts))
}

func applyDefaultGoalVar(mf *graph.Makefile) {
	val, err := mf.Global.Get(".DEFAULT_GOAL", expand.NewSettingStack())
	if err == nil && strings.TrimSpace(val) != "" {
		mf.DefaultTarget = strings.TrimSpace(val)
	}
}

func makeValue() string {
	if exe, err := os.Executable(); err == nil {
		return exe
	}
	return os.Args[0]
}

func lookupEnv(env []string, name string) string {
	if env == nil {
		return os.Getenv(name)
	}
	prefix := name + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):]
		}
	}
	return ""
}

func warnFn(loc errs.Location, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s: warning: %s\n", loc.String(), fmt.Sprintf(format, args...))
}
