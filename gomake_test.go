package gomake

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeMakefile(t *testing.T, dir, text string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte(text), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestRunBuildsExplicitGoal(t *testing.T) {
	dir := t.TempDir()
	writeMakefile(t, dir, "out.txt:\n\ttouch out.txt\n")

	if err := Run(Options{Dir: dir, Goals: []string{"out.txt"}, Jobs: 1}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.txt")); err != nil {
		t.Fatalf("expected out.txt to be created: %v", err)
	}
}

func TestRunDiscoversDefaultGoal(t *testing.T) {
	dir := t.TempDir()
	writeMakefile(t, dir, "all: first\nfirst:\n\ttouch first.out\nsecond:\n\ttouch second.out\n")

	if err := Run(Options{Dir: dir, Jobs: 1}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "first.out")); err != nil {
		t.Fatalf("expected the first rule's target (the default goal) to build: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "second.out")); err == nil {
		t.Fatalf("second.out should not have built; it isn't a dependency of the default goal")
	}
}

func TestRunDefaultGoalVarOverride(t *testing.T) {
	dir := t.TempDir()
	writeMakefile(t, dir, ".DEFAULT_GOAL := second\nfirst:\n\ttouch first.out\nsecond:\n\ttouch second.out\n")

	if err := Run(Options{Dir: dir, Jobs: 1}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "second.out")); err != nil {
		t.Fatalf("expected .DEFAULT_GOAL to redirect the default build: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "first.out")); err == nil {
		t.Fatalf("first.out should not have built once .DEFAULT_GOAL overrides it")
	}
}

func TestRunCommandLineVariableOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeMakefile(t, dir, "GREETING = hello\nall:\n\techo $(GREETING) > out.txt\n")

	if err := Run(Options{Dir: dir, Jobs: 1, CommandLineVars: []string{"GREETING=override"}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got, want := string(data), "override\n"; got != want {
		t.Errorf("out.txt = %q, want %q (command-line var should beat the makefile's)", got, want)
	}
}

func TestRunAmbientVariablesSeeded(t *testing.T) {
	dir := t.TempDir()
	writeMakefile(t, dir, "all:\n\techo $(CURDIR) > curdir.out\n")

	if err := Run(Options{Dir: dir, Jobs: 1}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "curdir.out"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got := filepath.Clean(string(data[:len(data)-1]))
	want := filepath.Clean(dir)
	if got != want {
		t.Errorf("CURDIR = %q, want %q", got, want)
	}
}

func TestRunDebugLogTracesVariableAndImplicitRuleLookups(t *testing.T) {
	dir := t.TempDir()
	writeMakefile(t, dir, "%.o: %.c\n\ttouch $@\n")
	if err := os.WriteFile(filepath.Join(dir, "bar.c"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	logPath := filepath.Join(dir, "trace.log")
	if err := Run(Options{Dir: dir, Goals: []string{"bar.o"}, Jobs: 1, DebugLogPath: logPath}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "implicit:") {
		t.Errorf("debug log = %q, want it to contain implicit-rule-search trace lines", data)
	}
}

func TestRunNoGoalsNoDefaultFails(t *testing.T) {
	dir := t.TempDir()
	writeMakefile(t, dir, "FOO = bar\n")
	if err := Run(Options{Dir: dir, Jobs: 1}); err == nil {
		t.Fatal("expected an error when no goals and no rules exist")
	}
}

func TestOptionsFromArgs(t *testing.T) {
	opts := OptionsFromArgs([]string{"-j4", "all", "DEBUG=1", "clean"})
	if len(opts.Goals) != 2 || opts.Goals[0] != "all" || opts.Goals[1] != "clean" {
		t.Errorf("Goals = %v, want [all clean]", opts.Goals)
	}
	if len(opts.CommandLineVars) != 1 || opts.CommandLineVars[0] != "DEBUG=1" {
		t.Errorf("CommandLineVars = %v, want [DEBUG=1]", opts.CommandLineVars)
	}
}

func TestResolveMakefilePathPrefersGNUmakefile(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "makefile"), []byte("lower:\n"), 0o644)
	os.WriteFile(filepath.Join(dir, "GNUmakefile"), []byte("upper:\n"), 0o644)

	path, err := resolveMakefilePath(dir, "")
	if err != nil {
		t.Fatalf("resolveMakefilePath: %v", err)
	}
	if filepath.Base(path) != "GNUmakefile" {
		t.Errorf("resolved %q, want GNUmakefile to take priority over makefile", path)
	}
}
