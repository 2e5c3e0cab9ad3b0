package gomake

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGlobFn(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.c", "b.c", "c.h"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0o644)
	}
	matches, err := globFn(dir, "*.c")
	if err != nil {
		t.Fatalf("globFn: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %v, want 2 .c files", matches)
	}
}

func TestShellFnCapturesStdout(t *testing.T) {
	out, err := shellFn("echo hello")
	if err != nil {
		t.Fatalf("shellFn: %v", err)
	}
	if out != "hello\n" {
		t.Errorf("shellFn output = %q, want %q", out, "hello\n")
	}
}

func TestShellFnReturnsPartialOutputOnFailure(t *testing.T) {
	out, err := shellFn("echo partial; exit 1")
	if err != nil {
		t.Fatalf("shellFn should not itself error on a nonzero exit (GNU make still uses the output): %v", err)
	}
	if out != "partial\n" {
		t.Errorf("shellFn output = %q, want %q", out, "partial\n")
	}
}

func TestFsStatMissingFile(t *testing.T) {
	fs := fsStat{}
	if got := fs.Stat(filepath.Join(t.TempDir(), "nope")); got != nil {
		t.Errorf("Stat(missing) = %v, want nil", got)
	}
}

func TestFsStatExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exists")
	os.WriteFile(path, []byte("x"), 0o644)
	fs := fsStat{}
	if got := fs.Stat(path); got == nil {
		t.Error("Stat(existing) = nil, want a non-nil mtime")
	}
}

func TestSelfReentryDetectsOwnInvocation(t *testing.T) {
	re := selfReentry("/usr/local/bin/gomake")
	ran, _ := re([]string{"/usr/local/bin/gomake other-goal"}, nil, t.TempDir())
	if !ran {
		t.Error("selfReentry should detect a recipe invoking the same $(MAKE) path")
	}

	ran2, _ := re([]string{"cc -c foo.c"}, nil, t.TempDir())
	if ran2 {
		t.Error("selfReentry should not fire for an unrelated command")
	}
}
