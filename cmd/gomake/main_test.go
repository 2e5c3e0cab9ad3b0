package main

import (
	"path/filepath"
	"testing"
)

func TestMakeflagsString(t *testing.T) {
	cases := []struct {
		jobs             int
		noPrintDirectory bool
		want             string
	}{
		{1, false, ""},
		{4, false, "j4"},
		{1, true, "--no-print-directory"},
		{8, true, "j8 --no-print-directory"},
	}
	for _, c := range cases {
		if got := makeflagsString(c.jobs, c.noPrintDirectory); got != c.want {
			t.Errorf("makeflagsString(%d, %v) = %q, want %q", c.jobs, c.noPrintDirectory, got, c.want)
		}
	}
}

func TestResolveDirAbsoluteAndRelative(t *testing.T) {
	dir, err := resolveDir("")
	if err != nil {
		t.Fatalf("resolveDir(\"\"): %v", err)
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("resolveDir(\"\") = %q, want an absolute path (the cwd)", dir)
	}

	abs, err := resolveDir("/tmp/somewhere")
	if err != nil {
		t.Fatalf("resolveDir(abs): %v", err)
	}
	if abs != "/tmp/somewhere" {
		t.Errorf("resolveDir(abs) = %q, want it returned unchanged", abs)
	}

	rel, err := resolveDir("subdir")
	if err != nil {
		t.Fatalf("resolveDir(rel): %v", err)
	}
	if filepath.Base(rel) != "subdir" || !filepath.IsAbs(rel) {
		t.Errorf("resolveDir(rel) = %q, want an absolute path ending in subdir", rel)
	}
}
