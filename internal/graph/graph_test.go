package graph

import (
	"strings"
	"testing"
	"time"

	"github.com/gomake-project/gomake/internal/errs"
	"github.com/gomake-project/gomake/internal/expand"
	"github.com/gomake-project/gomake/internal/pattern"
)

// fakeFS is an in-memory FileSystem stub: paths with a recorded mtime exist.
type fakeFS struct {
	mtimes map[string]time.Time
}

func newFakeFS() *fakeFS { return &fakeFS{mtimes: map[string]time.Time{}} }

func (f *fakeFS) Stat(path string) *time.Time {
	if t, ok := f.mtimes[path]; ok {
		return &t
	}
	return nil
}

func (f *fakeFS) touch(path string, at time.Time) { f.mtimes[path] = at }

// fakeScheduler runs every Call synchronously and records the argv seen.
type fakeScheduler struct {
	calls [][]string
	fail  map[string]bool // argv[0] (joined) -> force failure
}

func (s *fakeScheduler) Call(argv []string, useShell bool, env []string, cwd string, echo bool, cb func(error)) {
	joined := strings.Join(argv, " ")
	s.calls = append(s.calls, argv)
	if s.fail != nil && s.fail[joined] {
		cb(errNonZero)
		return
	}
	cb(nil)
}

var errNonZero = &fakeErr{"exit status 1"}

type fakeErr struct{ s string }

func (e *fakeErr) Error() string { return e.s }

func newTestMakefile(fs FileSystem, sched Scheduler) *Makefile {
	mf := New("/work")
	mf.FS = fs
	mf.Scheduler = sched
	mf.PrepareCmd = func(line string) ([]string, bool) { return []string{line}, true }
	mf.Glob = func(dir, pat string) ([]string, error) { return nil, nil }
	mf.Shell = func(cmd string) (string, error) { return "", nil }
	return mf
}

func makeSync(mf *Makefile, t *Target) (bool, error) {
	var did bool
	var err error
	mf.Make(t, nil, false, func(d bool, e error) { did, err = d, e })
	return did, err
}

func TestMakeRunsOutOfDateRule(t *testing.T) {
	fs := newFakeFS()
	old := time.Now().Add(-time.Hour)
	fs.touch("/work/foo.c", old)

	sched := &fakeScheduler{}
	mf := newTestMakefile(fs, sched)

	src := mf.GetOrCreate("foo.c")
	src.Explicit = true

	target := mf.GetOrCreate("foo.o")
	target.Explicit = true
	target.Rules = append(target.Rules, &Rule{
		PrereqNames: []string{"foo.c"},
		Commands:    []*expand.Expansion{mustExpand(t, "cc -c $< -o $@")},
	})

	if err := mf.ResolveDeps(target, nil, nil, true); err != nil {
		t.Fatalf("ResolveDeps: %v", err)
	}
	did, err := makeSync(mf, target)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if !did {
		t.Fatal("expected the rule to run (target has no mtime yet)")
	}
	if len(sched.calls) != 1 {
		t.Fatalf("expected 1 recipe invocation, got %d", len(sched.calls))
	}
	got := sched.calls[0][0]
	if !strings.Contains(got, "foo.c") || !strings.Contains(got, "foo.o") {
		t.Errorf("command = %q, want $< and $@ expanded to foo.c/foo.o", got)
	}
}

func TestMakeSkipsUpToDateTarget(t *testing.T) {
	fs := newFakeFS()
	past := time.Now().Add(-time.Hour)
	now := time.Now()
	fs.touch("/work/foo.c", past)
	fs.touch("/work/foo.o", now)

	sched := &fakeScheduler{}
	mf := newTestMakefile(fs, sched)

	mf.GetOrCreate("foo.c").Explicit = true
	target := mf.GetOrCreate("foo.o")
	target.Explicit = true
	target.Rules = append(target.Rules, &Rule{
		PrereqNames: []string{"foo.c"},
		Commands:    []*expand.Expansion{mustExpand(t, "cc -c $< -o $@")},
	})

	if err := mf.ResolveDeps(target, nil, nil, true); err != nil {
		t.Fatalf("ResolveDeps: %v", err)
	}
	did, err := makeSync(mf, target)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if did {
		t.Fatal("target is newer than its prerequisite, should not rebuild")
	}
	if len(sched.calls) != 0 {
		t.Fatalf("expected no recipe invocation, got %d", len(sched.calls))
	}
}

func TestMakeFailurePropagates(t *testing.T) {
	fs := newFakeFS()
	sched := &fakeScheduler{fail: map[string]bool{"false": true}}
	mf := newTestMakefile(fs, sched)

	target := mf.GetOrCreate("broken")
	target.Explicit = true
	target.Rules = append(target.Rules, &Rule{
		Commands: []*expand.Expansion{mustExpand(t, "false")},
	})

	if err := mf.ResolveDeps(target, nil, nil, true); err != nil {
		t.Fatalf("ResolveDeps: %v", err)
	}
	_, err := makeSync(mf, target)
	if err == nil {
		t.Fatal("expected the failing recipe to surface an error")
	}
}

func TestImplicitRuleSearchFindsPatternRule(t *testing.T) {
	fs := newFakeFS()
	fs.touch("/work/bar.c", time.Now().Add(-time.Hour))

	sched := &fakeScheduler{}
	mf := newTestMakefile(fs, sched)
	mf.PatternRules = append(mf.PatternRules, &PatternRule{
		TargetPatterns: []pattern.Pattern{pattern.Parse("%.o")},
		PrereqPatterns: []pattern.Pattern{pattern.Parse("%.c")},
		Commands:       []*expand.Expansion{mustExpand(t, "cc -c $< -o $@")},
	})

	target := mf.GetOrCreate("bar.o")
	if err := mf.ResolveDeps(target, nil, nil, true); err != nil {
		t.Fatalf("ResolveDeps: %v", err)
	}
	if len(target.Rules) != 1 {
		t.Fatalf("expected implicit rule search to attach one rule, got %d", len(target.Rules))
	}
	did, err := makeSync(mf, target)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if !did {
		t.Fatal("expected the implicit rule to fire")
	}
}

func TestImplicitRuleSearchTraceReachesDebugFn(t *testing.T) {
	fs := newFakeFS()
	fs.touch("/work/bar.c", time.Now().Add(-time.Hour))

	sched := &fakeScheduler{}
	mf := newTestMakefile(fs, sched)
	mf.PatternRules = append(mf.PatternRules, &PatternRule{
		TargetPatterns: []pattern.Pattern{pattern.Parse("%.o")},
		PrereqPatterns: []pattern.Pattern{pattern.Parse("%.c")},
		Commands:       []*expand.Expansion{mustExpand(t, "cc -c $< -o $@")},
	})
	var traced []string
	mf.DebugFn = func(format string, args ...any) {
		traced = append(traced, format)
	}

	target := mf.GetOrCreate("bar.o")
	if err := mf.ResolveDeps(target, nil, nil, true); err != nil {
		t.Fatalf("ResolveDeps: %v", err)
	}
	if len(traced) == 0 {
		t.Fatal("expected implicit-rule search to emit at least one debug trace line")
	}
}

func TestNoRuleToMakeTargetError(t *testing.T) {
	fs := newFakeFS()
	sched := &fakeScheduler{}
	mf := newTestMakefile(fs, sched)

	target := mf.GetOrCreate("nonexistent")
	err := mf.ResolveDeps(target, nil, nil, true)
	if err == nil {
		t.Fatal("expected an error for an unbuildable, nonexistent target")
	}
	if !strings.Contains(err.Error(), "no rule to make target") {
		t.Errorf("error = %v, want a \"no rule to make target\" message", err)
	}
}

func TestRecursiveDependencyDetected(t *testing.T) {
	fs := newFakeFS()
	sched := &fakeScheduler{}
	mf := newTestMakefile(fs, sched)

	a := mf.GetOrCreate("a")
	a.Explicit = true
	a.Rules = append(a.Rules, &Rule{PrereqNames: []string{"b"}, Commands: []*expand.Expansion{mustExpand(t, "true")}})
	b := mf.GetOrCreate("b")
	b.Explicit = true
	b.Rules = append(b.Rules, &Rule{PrereqNames: []string{"a"}, Commands: []*expand.Expansion{mustExpand(t, "true")}})

	err := mf.ResolveDeps(a, nil, nil, true)
	if err == nil {
		t.Fatal("expected a recursive-dependency error")
	}
}

func mustExpand(t *testing.T, text string) *expand.Expansion {
	t.Helper()
	exp, err := expand.ParseExpansion(text, errs.Location{})
	if err != nil {
		t.Fatalf("ParseExpansion(%q): %v", text, err)
	}
	return exp
}
