// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/gomake-project/gomake/internal/errs"
)

// ResolveDeps implements spec.md §4.5: VPATH-resolve t, fall back to
// implicit-rule search if it has no command-bearing rule yet, fail if
// still unbuildable and required, recurse into every prerequisite, and
// merge matching pattern-variable scopes.
func (mf *Makefile) ResolveDeps(t *Target, targetStack []string, ruleStack []*PatternRule, required bool) error {
	for _, n := range targetStack {
		if n == t.Name {
			return errs.New(errs.Resolution, errs.Location{}, "recursive dependency: %s -> %s", strings.Join(targetStack, " -> "), t.Name)
		}
	}
	if t.depsResolved {
		return nil
	}

	mf.resolveVPath(t)

	hasCommandRule := false
	for _, r := range t.Rules {
		if len(r.CommandsOf()) > 0 {
			hasCommandRule = true
			break
		}
	}
	if !hasCommandRule {
		inst, err := mf.searchImplicit(t, append(targetStack, t.Name), ruleStack)
		if err != nil {
			return err
		}
		if inst != nil {
			t.Rules = append(t.Rules, inst)
		}
	}

	if len(t.Rules) == 0 && t.Mtime == nil && required {
		return errs.New(errs.Resolution, errs.Location{}, "no rule to make target %q", t.Name)
	}

	childStack := append(targetStack, t.Name)
	for _, p := range mf.allPrereqNames(t) {
		pt := mf.GetOrCreate(p)
		if err := mf.ResolveDeps(pt, childStack, ruleStack, true); err != nil {
			return err
		}
	}

	for _, pv := range mf.PatternVars {
		if _, ok := pv.Pattern.Match(t.Name); ok {
			// A target-specific assignment, or an earlier-merged matching
			// pattern, already bound locally wins — spec.md §9's "append in
			// encounter order" decision.
			t.Scope.MergeMissing(pv.Scope)
		}
	}

	t.depsResolved = true
	return nil
}

// resolveVPath implements spec.md §4.5's VPATH search: "-l<stem>" library
// targets search .LIBPATTERNS across [workdir]+vpath; absolute paths skip
// search; everything else tries workdir then each matching VPATH
// directory, first hit wins; an unresolved target keeps its own name with
// no mtime ("phony" targets fall out of this as the natural no-match case,
// since no built-in .PHONY is modeled per spec.md's non-goals).
func (mf *Makefile) resolveVPath(t *Target) {
	if t.vpathResolved {
		return
	}
	t.vpathResolved = true
	name := t.Name

	if strings.HasPrefix(name, "-l") {
		stem := name[2:]
		dirs := append([]string{mf.WorkDir}, mf.vpathDirsFor(name)...)
		for _, dir := range dirs {
			for _, lp := range mf.LibPatterns {
				candidate := filepath.Join(dir, lp.Resolve("", stem))
				if mtime := mf.statPath(candidate); mtime != nil {
					t.VPathTarget = candidate
					t.Mtime = mtime
					return
				}
			}
		}
		t.VPathTarget = name
		t.Mtime = nil
		return
	}

	if filepath.IsAbs(name) {
		t.VPathTarget = name
		t.Mtime = mf.statPath(name)
		return
	}

	candidates := []string{filepath.Join(mf.WorkDir, name)}
	for _, d := range mf.vpathDirsFor(name) {
		candidates = append(candidates, filepath.Join(d, name))
	}
	for _, c := range candidates {
		if mtime := mf.statPath(c); mtime != nil {
			t.VPathTarget = c
			t.Mtime = mtime
			return
		}
	}
	t.VPathTarget = name
	t.Mtime = nil
}

func (mf *Makefile) vpathDirsFor(name string) []string {
	var dirs []string
	for _, e := range mf.VPathByPat {
		if _, ok := e.Pattern.Match(name); ok {
			dirs = append(dirs, e.Dirs...)
		}
	}
	dirs = append(dirs, mf.VPathGlobal...)
	return dirs
}

func (mf *Makefile) statPath(path string) *time.Time {
	if mf.FS == nil {
		return nil
	}
	return mf.FS.Stat(path)
}
