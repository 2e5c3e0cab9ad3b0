// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/gomake-project/gomake"
	"github.com/gomake-project/gomake/internal/errs"
)

const version = "gomake 1.0 (GNU make compatible)"

func main() {
	var (
		file             = pflag.StringP("file", "f", "", "read FILE as the makefile")
		makefileAlias    = pflag.String("makefile", "", "alias for --file")
		directory        = pflag.StringP("directory", "C", "", "change to DIRECTORY before reading the makefile")
		jobs             = pflag.IntP("jobs", "j", 1, "allow N jobs at once")
		debugLog         = pflag.String("debug-log", "", "write diagnostic trace lines to FILE")
		noPrintDirectory = pflag.Bool("no-print-directory", false, "turn off -w, even if -C is used")
		showVersion      = pflag.BoolP("version", "v", false, "print the version and exit")
		debug            = pflag.BoolP("debug", "d", false, "alias for --debug-log gomake.debug")
	)
	pflag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	makefilePath := *file
	if makefilePath == "" {
		makefilePath = *makefileAlias
	}
	if *debug && *debugLog == "" {
		*debugLog = "gomake.debug"
	}

	dir, err := resolveDir(*directory)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gomake: %s\n", err)
		os.Exit(2)
	}

	var goals []string
	var overrides []string
	for _, a := range pflag.Args() {
		if strings.Contains(a, "=") {
			overrides = append(overrides, a)
			continue
		}
		goals = append(goals, a)
	}

	opts := gomake.Options{
		Dir:              dir,
		MakefilePath:     makefilePath,
		Goals:            goals,
		CommandLineVars:  overrides,
		Jobs:             *jobs,
		DebugLogPath:     *debugLog,
		NoPrintDirectory: *noPrintDirectory,
		FlagsString:      makeflagsString(*jobs, *noPrintDirectory),
	}

	if err := gomake.Run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "gomake: %s\n", err)
		os.Exit(errs.ExitCode(err))
	}
}

func resolveDir(cFlag string) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if cFlag == "" {
		return wd, nil
	}
	if filepath.IsAbs(cFlag) {
		return cFlag, nil
	}
	return filepath.Join(wd, cFlag), nil
}

// makeflagsString assembles the short+long MAKEFLAGS text for this
// invocation, reused verbatim by sub-makes (spec.md §4.7 step 2).
func makeflagsString(jobs int, noPrintDirectory bool) string {
	var short strings.Builder
	if jobs > 1 {
		short.WriteString("j")
		short.WriteString(strconv.Itoa(jobs))
	}
	var parts []string
	if short.Len() > 0 {
		parts = append(parts, short.String())
	}
	if noPrintDirectory {
		parts = append(parts, "--no-print-directory")
	}
	return strings.Join(parts, " ")
}
