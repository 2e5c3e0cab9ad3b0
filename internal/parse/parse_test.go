package parse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomake-project/gomake/internal/expand"
	"github.com/gomake-project/gomake/internal/graph"
)

func parseText(t *testing.T, mf *graph.Makefile, text string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "Makefile")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := New(mf).ParseFile(path); err != nil {
		t.Fatalf("ParseFile: %v\n--- makefile ---\n%s", err, text)
	}
}

func newTestMakefile() *graph.Makefile {
	return graph.New("/work")
}

func getVar(t *testing.T, mf *graph.Makefile, name string) string {
	t.Helper()
	val, err := mf.Global.Get(name, expand.NewSettingStack())
	if err != nil {
		t.Fatalf("Get(%q): %v", name, err)
	}
	return val
}

func TestAssignmentOperators(t *testing.T) {
	mf := newTestMakefile()
	parseText(t, mf, `
A = 1
B := $(A)2
A = 9
C ?= first
C ?= second
D = base
D += extra
`)
	if got, want := getVar(t, mf, "A"), "9"; got != want {
		t.Errorf("A = %q, want %q", got, want)
	}
	if got, want := getVar(t, mf, "B"), "12"; got != want {
		t.Errorf("B (simple, frozen) = %q, want %q", got, want)
	}
	if got, want := getVar(t, mf, "C"), "first"; got != want {
		t.Errorf("C (?= should not clobber) = %q, want %q", got, want)
	}
	if got, want := getVar(t, mf, "D"), "base extra"; got != want {
		t.Errorf("D (+=) = %q, want %q", got, want)
	}
}

func TestConditionalDirectives(t *testing.T) {
	mf := newTestMakefile()
	parseText(t, mf, `
FOO = yes
ifeq ($(FOO),yes)
RESULT = matched
else
RESULT = nomatch
endif

ifdef UNSET_VAR
DEFRESULT = set
else
DEFRESULT = unset
endif
`)
	if got, want := getVar(t, mf, "RESULT"), "matched"; got != want {
		t.Errorf("RESULT = %q, want %q", got, want)
	}
	if got, want := getVar(t, mf, "DEFRESULT"), "unset"; got != want {
		t.Errorf("DEFRESULT = %q, want %q", got, want)
	}
}

func TestDefineEndef(t *testing.T) {
	mf := newTestMakefile()
	parseText(t, mf, `
define GREETING
hello
world
endef
`)
	got := getVar(t, mf, "GREETING")
	want := "hello\nworld"
	if got != want {
		t.Errorf("GREETING = %q, want %q", got, want)
	}
}

func TestPlainRuleWithRecipe(t *testing.T) {
	mf := newTestMakefile()
	parseText(t, mf, "foo.o: foo.c foo.h\n\tcc -c foo.c -o foo.o\n")
	tgt, ok := mf.Targets["foo.o"]
	if !ok {
		t.Fatal("target foo.o was not created")
	}
	if !tgt.Explicit {
		t.Error("foo.o should be marked Explicit")
	}
	if len(tgt.Rules) != 1 {
		t.Fatalf("expected 1 rule on foo.o, got %d", len(tgt.Rules))
	}
	r := tgt.Rules[0]
	if len(r.Prereqs()) != 2 || r.Prereqs()[0] != "foo.c" || r.Prereqs()[1] != "foo.h" {
		t.Errorf("prereqs = %v, want [foo.c foo.h]", r.Prereqs())
	}
	if len(r.CommandsOf()) != 1 {
		t.Fatalf("expected 1 recipe line, got %d", len(r.CommandsOf()))
	}
}

func TestMultiTargetRuleSharesOneRule(t *testing.T) {
	mf := newTestMakefile()
	parseText(t, mf, "a b: common.h\n\ttouch $@\n")
	a := mf.Targets["a"]
	b := mf.Targets["b"]
	if a == nil || b == nil {
		t.Fatal("expected both a and b to be created")
	}
	if a.Rules[0] != b.Rules[0] {
		t.Error("a multi-target rule header should share one *Rule object")
	}
}

func TestPatternRuleInstalled(t *testing.T) {
	mf := newTestMakefile()
	parseText(t, mf, "%.o: %.c\n\tcc -c $< -o $@\n")
	if len(mf.PatternRules) != 1 {
		t.Fatalf("expected 1 pattern rule, got %d", len(mf.PatternRules))
	}
	pr := mf.PatternRules[0]
	if len(pr.Commands) != 1 {
		t.Fatalf("expected 1 recipe line on the pattern rule, got %d", len(pr.Commands))
	}
}

func TestStaticPatternRuleDistinctPerTarget(t *testing.T) {
	mf := newTestMakefile()
	parseText(t, mf, "foo.o bar.o: %.o: %.c\n\tcc -c $< -o $@\n")
	foo := mf.Targets["foo.o"]
	bar := mf.Targets["bar.o"]
	if foo == nil || bar == nil {
		t.Fatal("expected both foo.o and bar.o to be created")
	}
	if len(foo.Rules) != 1 || len(bar.Rules) != 1 {
		t.Fatal("expected exactly one rule per static-pattern target")
	}
	if foo.Rules[0] == bar.Rules[0] {
		t.Error("static-pattern rules must be distinct per target (different stems)")
	}
	if foo.Rules[0].Prereqs()[0] != "foo.c" {
		t.Errorf("foo.o prereqs = %v, want [foo.c]", foo.Rules[0].Prereqs())
	}
	if bar.Rules[0].Prereqs()[0] != "bar.c" {
		t.Errorf("bar.o prereqs = %v, want [bar.c]", bar.Rules[0].Prereqs())
	}
}

func TestInlineRecipeSemicolon(t *testing.T) {
	mf := newTestMakefile()
	parseText(t, mf, "clean: ; rm -f *.o\n")
	tgt := mf.Targets["clean"]
	if tgt == nil || len(tgt.Rules) != 1 || len(tgt.Rules[0].CommandsOf()) != 1 {
		t.Fatal("expected an inline ';' recipe to attach one command")
	}
}

func TestOrderOnlyPrerequisitesRejected(t *testing.T) {
	mf := newTestMakefile()
	dir := t.TempDir()
	path := filepath.Join(dir, "Makefile")
	os.WriteFile(path, []byte("foo: bar | baz\n\ttouch foo\n"), 0o644)
	if err := New(mf).ParseFile(path); err == nil {
		t.Fatal("expected order-only '|' prerequisites to be rejected")
	}
}

func TestTargetScopedVariable(t *testing.T) {
	mf := newTestMakefile()
	parseText(t, mf, "foo: CFLAGS = -O2\nfoo:\n\techo $(CFLAGS)\n")
	tgt := mf.Targets["foo"]
	if tgt == nil {
		t.Fatal("target foo was not created")
	}
	val, err := tgt.Scope.Get("CFLAGS", expand.NewSettingStack())
	if err != nil {
		t.Fatalf("Get(CFLAGS): %v", err)
	}
	if val != "-O2" {
		t.Errorf("CFLAGS = %q, want -O2", val)
	}
}

func TestIncludeDirective(t *testing.T) {
	dir := t.TempDir()
	incPath := filepath.Join(dir, "vars.mk")
	os.WriteFile(incPath, []byte("INCLUDED = 1\n"), 0o644)
	mainPath := filepath.Join(dir, "Makefile")
	os.WriteFile(mainPath, []byte("include vars.mk\n"), 0o644)

	mf := newTestMakefile()
	p := New(mf)
	// parser resolves include-relative paths against its own cwd per the
	// documented simplification that WorkDir == process cwd; emulate that
	// here by passing the absolute include path directly via a rewritten file.
	mainAbsInclude := filepath.Join(dir, "Makefile2")
	os.WriteFile(mainAbsInclude, []byte("include "+incPath+"\n"), 0o644)
	if err := p.ParseFile(mainAbsInclude); err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if got, want := getVar(t, mf, "INCLUDED"), "1"; got != want {
		t.Errorf("INCLUDED = %q, want %q", got, want)
	}
	found := false
	for _, inc := range mf.Includes {
		if inc == incPath {
			found = true
		}
	}
	if !found {
		t.Errorf("Includes = %v, want it to contain %q", mf.Includes, incPath)
	}
}

func TestExportDirectives(t *testing.T) {
	mf := newTestMakefile()
	parseText(t, mf, "export FOO\nFOO = bar\n")
	if !mf.Exported["FOO"] {
		t.Error("FOO should be marked exported")
	}

	mf2 := newTestMakefile()
	parseText(t, mf2, "export\n")
	if !mf2.ExportAll {
		t.Error("bare export should set ExportAll")
	}
}

func TestRecipeLineHashIsNotAComment(t *testing.T) {
	mf := newTestMakefile()
	parseText(t, mf, "foo:\n\techo hi # not a makefile comment\n")
	tgt := mf.Targets["foo"]
	if tgt == nil || len(tgt.Rules) != 1 || len(tgt.Rules[0].CommandsOf()) != 1 {
		t.Fatal("expected one recipe line on foo")
	}
	cmd := tgt.Rules[0].CommandsOf()[0]
	got, err := cmd.Eval(&expand.EvalContext{Scope: mf.Global, Stack: expand.NewSettingStack()})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if want := "echo hi # not a makefile comment"; got != want {
		t.Errorf("recipe text = %q, want %q (a recipe's # is not a makefile comment)", got, want)
	}
}

func TestUnterminatedDefineIsAnError(t *testing.T) {
	mf := newTestMakefile()
	dir := t.TempDir()
	path := filepath.Join(dir, "Makefile")
	os.WriteFile(path, []byte("define FOO\nbody\n"), 0o644)
	if err := New(mf).ParseFile(path); err == nil {
		t.Fatal("expected an unterminated define to be reported as an error")
	}
}

func TestDefaultGoalIsFirstPlainTarget(t *testing.T) {
	mf := newTestMakefile()
	parseText(t, mf, ".PHONY: clean\nall: foo\nfoo:\n\ttouch foo\nclean:\n\trm -f foo\n")
	if got, want := mf.DefaultTarget, "all"; got != want {
		t.Errorf("DefaultTarget = %q, want %q (first non-dot-prefixed rule's first target)", got, want)
	}
}

func TestVpathDirective(t *testing.T) {
	mf := newTestMakefile()
	parseText(t, mf, "vpath %.c src\n")
	if len(mf.VPathByPat) != 1 {
		t.Fatalf("expected 1 vpath entry, got %d", len(mf.VPathByPat))
	}
	if len(mf.VPathByPat[0].Dirs) != 1 || mf.VPathByPat[0].Dirs[0] != "src" {
		t.Errorf("vpath dirs = %v, want [src]", mf.VPathByPat[0].Dirs)
	}
}
