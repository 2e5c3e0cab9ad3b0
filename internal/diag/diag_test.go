package diag

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLogDisabledByEmptyPath(t *testing.T) {
	l := NewLog("")
	if l.Enabled() {
		t.Fatal("Enabled() = true for an empty path")
	}
	l.Printf("hello %d", 1)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() on a disabled log returned an error: %v", err)
	}
}

func TestLogWritesAtomicallyOnClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gomake.debug")
	l := NewLog(path)
	if !l.Enabled() {
		t.Fatal("Enabled() = false for a non-empty path")
	}
	l.Printf("line %d", 1)
	l.Printf("line %d", 2)

	if _, err := os.Stat(path); err == nil {
		t.Fatal("log file should not exist before Close")
	}

	if err := l.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "line 1\nline 2\n"
	if string(data) != want {
		t.Errorf("log contents = %q, want %q", string(data), want)
	}
}

func TestLogCloseNoopWhenNothingWasLogged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gomake.debug")
	l := NewLog(path)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if _, err := os.Stat(path); err == nil {
		t.Fatal("Close() with no logged lines should not create a file")
	}
}
