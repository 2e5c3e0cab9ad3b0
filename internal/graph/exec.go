// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gomake-project/gomake/internal/errs"
	"github.com/gomake-project/gomake/internal/expand"
)

// Make implements spec.md §4.7: resolve t's dependencies, chain its
// prerequisites' Make calls in declaration order, then build t itself.
// Results are delivered through cb(didSomething, err) rather than
// returned, so independent subtrees can be interleaved by a scheduler
// (spec.md §4.9, §9's "explicit continuations" design note) without any
// goroutines inside the engine itself.
func (mf *Makefile) Make(t *Target, targetStack []string, avoidRemakeLoop bool, cb func(bool, error)) {
	if t.Remade != RemadeUnknown {
		cb(t.Remade == RemadeDid, nil)
		return
	}
	if err := mf.ResolveDeps(t, targetStack, nil, true); err != nil {
		cb(false, err)
		return
	}
	prereqs := mf.allPrereqNames(t)
	childStack := append(append([]string{}, targetStack...), t.Name)
	mf.makeChain(prereqs, childStack, 0, false, func(_ bool, err error) {
		if err != nil {
			cb(false, err)
			return
		}
		mf.runTargetRules(t, avoidRemakeLoop, cb)
	})
}

func (mf *Makefile) makeChain(names []string, targetStack []string, idx int, didAny bool, cb func(bool, error)) {
	if idx >= len(names) {
		cb(didAny, nil)
		return
	}
	pt := mf.GetOrCreate(names[idx])
	mf.Make(pt, targetStack, false, func(did bool, err error) {
		if err != nil {
			cb(false, err)
			return
		}
		mf.makeChain(names, targetStack, idx+1, didAny || did, cb)
	})
}

func (mf *Makefile) isDoubleColonTarget(t *Target) bool {
	return len(t.Rules) > 0 && t.Rules[0].IsDoubleColon()
}

func (mf *Makefile) runTargetRules(t *Target, avoidRemakeLoop bool, cb func(bool, error)) {
	if len(t.Rules) == 0 {
		t.Remade = RemadeNothing
		cb(false, nil)
		return
	}
	if !mf.isDoubleColonTarget(t) {
		var cmdRule RuleLike
		for _, r := range t.Rules {
			if len(r.CommandsOf()) > 0 {
				cmdRule = r
				break
			}
		}
		if cmdRule == nil || !mf.outOfDate(t) {
			t.Remade = RemadeNothing
			cb(false, nil)
			return
		}
		mf.remake(t)
		mf.executeRule(t, cmdRule, func(err error) {
			if err != nil {
				cb(false, err)
				return
			}
			t.Remade = RemadeDid
			cb(true, nil)
		})
		return
	}
	mf.runDoubleColonRules(t, 0, false, avoidRemakeLoop, cb)
}

func (mf *Makefile) outOfDate(t *Target) bool {
	if t.Mtime == nil {
		return true
	}
	for _, p := range mf.allPrereqNames(t) {
		pt := mf.Targets[p]
		if pt == nil {
			continue
		}
		if pt.Mtime == nil || pt.Mtime.After(*t.Mtime) {
			return true
		}
	}
	return false
}

func (mf *Makefile) runDoubleColonRules(t *Target, idx int, didAny, avoidRemakeLoop bool, cb func(bool, error)) {
	if idx >= len(t.Rules) {
		if didAny {
			t.Remade = RemadeDid
		} else {
			t.Remade = RemadeNothing
		}
		cb(didAny, nil)
		return
	}
	r := t.Rules[idx]
	if len(r.CommandsOf()) == 0 {
		mf.runDoubleColonRules(t, idx+1, didAny, avoidRemakeLoop, cb)
		return
	}
	exec := len(r.Prereqs()) == 0 && !avoidRemakeLoop
	if !exec {
		if t.Mtime == nil {
			exec = true
		}
		for _, p := range r.Prereqs() {
			pt := mf.Targets[p]
			if pt != nil && pt.Mtime != nil && t.Mtime != nil && pt.Mtime.After(*t.Mtime) {
				exec = true
				break
			}
		}
	}
	if !exec {
		mf.runDoubleColonRules(t, idx+1, didAny, avoidRemakeLoop, cb)
		return
	}
	mf.remake(t)
	mf.executeRule(t, r, func(err error) {
		if err != nil {
			cb(false, err)
			return
		}
		mf.runDoubleColonRules(t, idx+1, true, avoidRemakeLoop, cb)
	})
}

// remake snapshots t's pre-build mtime into RealMtime (so $? can compare
// against it) and clears Mtime/VPathTarget so the post-recipe state is
// re-resolved fresh, per spec.md §4.7.
func (mf *Makefile) remake(t *Target) {
	t.RealMtime = t.Mtime
	t.Mtime = nil
	t.VPathTarget = ""
	t.vpathResolved = false
}

func (mf *Makefile) executeRule(t *Target, r RuleLike, cb func(error)) {
	recipeScope := expand.NewScope(t.Scope)
	mf.setAutomaticVars(recipeScope, t, r)
	env := mf.buildSubEnv()
	mf.runCommands(t, r, recipeScope, env, r.CommandsOf(), 0, cb)
}

// setAutomaticVars populates $@ $< $? $^ $+ with their D/F variants, and
// $* (without D/F variants), in scope, per spec.md §4.7 step 1.
func (mf *Makefile) setAutomaticVars(scope *expand.Scope, t *Target, r RuleLike) {
	at := t.VPathTarget
	if at == "" {
		at = t.Name
	}

	prereqNames := r.Prereqs()
	resolved := make([]string, len(prereqNames))
	for i, p := range prereqNames {
		if pt, ok := mf.Targets[p]; ok && pt.VPathTarget != "" {
			resolved[i] = pt.VPathTarget
		} else {
			resolved[i] = p
		}
	}

	var first string
	if len(resolved) > 0 {
		first = resolved[0]
	}

	var qmark []string
	seenQ := make(map[string]bool)
	for i, p := range resolved {
		pt := mf.Targets[prereqNames[i]]
		newer := pt == nil || pt.Mtime == nil || t.RealMtime == nil || pt.Mtime.After(*t.RealMtime)
		if newer && !seenQ[p] {
			qmark = append(qmark, p)
			seenQ[p] = true
		}
	}

	var caret []string
	seenC := make(map[string]bool)
	for _, p := range resolved {
		if !seenC[p] {
			caret = append(caret, p)
			seenC[p] = true
		}
	}

	set := func(name, val string) {
		scope.SetRaw(name, expand.Automatic, val)
		d, f := splitDF(val)
		scope.SetRaw(name+"D", expand.Automatic, d)
		scope.SetRaw(name+"F", expand.Automatic, f)
	}
	set("@", at)
	set("<", first)
	set("?", strings.Join(qmark, " "))
	set("^", strings.Join(caret, " "))
	set("+", strings.Join(resolved, " "))
	scope.SetRaw("*", expand.Automatic, r.Stem())
}

// buildSubEnv implements spec.md §4.7 step 2: OS environment + exported
// variables + MAKEFLAGS + MAKELEVEL.
func (mf *Makefile) buildSubEnv() []string {
	env := os.Environ()
	stack := expand.NewSettingStack()
	names := mf.Exported
	if mf.ExportAll {
		names = make(map[string]bool, len(mf.Global.LocalNames()))
		for _, n := range mf.Global.LocalNames() {
			names[n] = true
		}
	}
	for name := range names {
		val, err := mf.Global.Get(name, stack)
		if err != nil {
			continue
		}
		env = append(env, name+"="+val)
	}
	env = append(env, "MAKEFLAGS="+mf.makeflagsString())
	env = append(env, "MAKELEVEL="+strconv.Itoa(mf.MakeLevel+1))
	return env
}

// makeflagsString builds MAKEFLAGS per spec.md §4.7 step 2: short flags
// concatenated, long flags space-separated (FlagsString, assembled by the
// CLI front-end), then " -- " and the verbatim override list, each word
// backslash-escaping whitespace and backslashes.
func (mf *Makefile) makeflagsString() string {
	var b strings.Builder
	b.WriteString(mf.FlagsString)
	if len(mf.Overrides) > 0 {
		b.WriteString(" --")
		for _, ov := range mf.Overrides {
			b.WriteByte(' ')
			b.WriteString(escapeMakeflagsWord(ov.Text))
		}
	}
	return b.String()
}

func escapeMakeflagsWord(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}

// runCommands resolves and runs each of a rule's command Expansions in
// sequence, per spec.md §4.7 step 3-4.
func (mf *Makefile) runCommands(t *Target, r RuleLike, scope *expand.Scope, env []string, cmds []*expand.Expansion, idx int, cb func(error)) {
	if idx >= len(cmds) {
		cb(nil)
		return
	}
	ctx := &expand.EvalContext{
		Scope: scope,
		Stack: expand.NewSettingStack(),
		WorkDir: mf.WorkDir,
		Glob:    mf.Glob,
		Shell:   mf.Shell,
		Warn:    mf.WarnFn,
	}
	text, err := cmds[idx].Eval(ctx)
	if err != nil {
		cb(err)
		return
	}
	lines := strings.Split(text, "\n")
	mf.runCommandLines(t, lines, 0, env, cb, func() {
		mf.runCommands(t, r, scope, env, cmds, idx+1, cb)
	})
}

func (mf *Makefile) runCommandLines(t *Target, lines []string, idx int, env []string, failCb func(error), doneCb func()) {
	if idx >= len(lines) {
		doneCb()
		return
	}
	line := lines[idx]

	silent, ignoreErr := false, false
	rest := line
	for {
		s := strings.TrimLeft(rest, " \t")
		if len(s) == 0 || (s[0] != '@' && s[0] != '+' && s[0] != '-') {
			rest = s
			break
		}
		if s[0] == '@' {
			silent = true
		} else if s[0] == '-' {
			ignoreErr = true
		}
		rest = s[1:]
	}

	if strings.TrimSpace(rest) == "" {
		mf.runCommandLines(t, lines, idx+1, env, failCb, doneCb)
		return
	}
	if !silent && mf.Stdout != nil {
		fmt.Fprintln(mf.Stdout, rest)
	}

	argv, useShell := mf.prepareCmd(rest)
	mf.Scheduler.Call(argv, useShell, env, mf.WorkDir, !silent, func(err error) {
		if err != nil && !ignoreErr {
			failCb(errs.Wrap(errs.Process, errs.Location{}, err, "recipe for target %q failed", t.Name))
			return
		}
		mf.runCommandLines(t, lines, idx+1, env, failCb, doneCb)
	})
}

func (mf *Makefile) prepareCmd(line string) ([]string, bool) {
	if mf.PrepareCmd != nil {
		return mf.PrepareCmd(line)
	}
	return []string{line}, true
}
