// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

// Package graph implements the target/rule model and build engine of
// spec.md §3 ("Target", "Rule", "PatternRule", "PatternRuleInstance",
// "Makefile (top)") and §4.5-§4.8 (dependency resolution, implicit-rule
// search, recipe execution, the restart loop). It is grounded on the
// teacher's graph.go (dependency walk + memoized remake) and exec.go
// (automatic variables, recipe invocation), rewritten from the teacher's
// named-capture rule matching to GNU make's pattern/VPATH/implicit-chaining
// model.
package graph

import (
	"io"
	"strings"
	"time"

	"github.com/gomake-project/gomake/internal/errs"
	"github.com/gomake-project/gomake/internal/expand"
	"github.com/gomake-project/gomake/internal/pattern"
)

// RuleLike is the common interface over a literal Rule and a
// PatternRuleInstance (a PatternRule bound to a concrete dir/stem), per
// spec.md §3.
type RuleLike interface {
	Prereqs() []string
	IsDoubleColon() bool
	CommandsOf() []*expand.Expansion
	Location() errs.Location
	Stem() string
}

// Rule is an explicit or static-pattern-installed rule attached directly
// to one target.
type Rule struct {
	PrereqNames []string
	DoubleColon bool
	Loc         errs.Location
	Commands    []*expand.Expansion
}

func (r *Rule) Prereqs() []string                    { return r.PrereqNames }
func (r *Rule) IsDoubleColon() bool                   { return r.DoubleColon }
func (r *Rule) CommandsOf() []*expand.Expansion       { return r.Commands }
func (r *Rule) Location() errs.Location               { return r.Loc }
func (r *Rule) Stem() string                          { return "" }

// PatternRule is an implicit rule: one or more target patterns, one or
// more prerequisite patterns, installed into the makefile's implicit-rule
// list by the parser.
type PatternRule struct {
	TargetPatterns []pattern.Pattern
	PrereqPatterns []pattern.Pattern
	DoubleColon    bool
	Loc            errs.Location
	Commands       []*expand.Expansion
}

// PatternRuleInstance adapts a PatternRule bound to a concrete (dir, stem)
// to the RuleLike interface, per spec.md §3.
type PatternRuleInstance struct {
	Rule     *PatternRule
	Dir      string
	StemText string
	MatchAny bool
}

func (p *PatternRuleInstance) Prereqs() []string {
	out := make([]string, len(p.Rule.PrereqPatterns))
	for i, pp := range p.Rule.PrereqPatterns {
		out[i] = pp.Resolve(p.Dir, p.StemText)
	}
	return out
}
func (p *PatternRuleInstance) IsDoubleColon() bool             { return p.Rule.DoubleColon }
func (p *PatternRuleInstance) CommandsOf() []*expand.Expansion { return p.Rule.Commands }
func (p *PatternRuleInstance) Location() errs.Location         { return p.Rule.Loc }
func (p *PatternRuleInstance) Stem() string                    { return p.StemText }

// RemadeState is the tri-state memoization of a target's build outcome
// within one top-level invocation (spec.md §3 invariant 6).
type RemadeState int

const (
	RemadeUnknown RemadeState = iota
	RemadeNothing
	RemadeDid
)

// Target is one node of the dependency graph (spec.md §3).
type Target struct {
	Name        string
	VPathTarget string
	Rules       []RuleLike
	Scope       *expand.Scope
	Explicit    bool
	Mtime       *time.Time
	RealMtime   *time.Time
	Remade      RemadeState

	vpathResolved bool
	depsResolved  bool
}

// PatternVarEntry is a target- or pattern-scoped variable assignment from
// a "%pattern: VAR = value" header, merged into every matching target's
// scope during dependency resolution.
type PatternVarEntry struct {
	Pattern pattern.Pattern
	Scope   *expand.Scope
}

// VPathEntry is one "vpath pattern dirs…" directive's effect.
type VPathEntry struct {
	Pattern pattern.Pattern
	Dirs    []string
}

// FileSystem is the filesystem collaborator: mtime lookup only, per
// spec.md §6 ("Filesystem contract").
type FileSystem interface {
	// Stat returns the modification time of path, or nil if it doesn't exist.
	Stat(path string) *time.Time
}

// Scheduler is the process-execution collaborator (internal/sched
// satisfies this structurally, so graph never imports sched).
type Scheduler interface {
	Call(argv []string, useShell bool, env []string, cwd string, echo bool, cb func(error))
}

// Override is a verbatim command-line "V=val" or "V:=val" assignment,
// kept for MAKEFLAGS re-export to sub-makes (spec.md §4.3).
type Override struct {
	Text string
}

// Makefile is the top-level model: global variables, the target map, the
// implicit-rule list, VPATH state, and restart bookkeeping (spec.md §3's
// "Makefile (top)").
type Makefile struct {
	Global       *expand.Scope
	Targets      map[string]*Target
	PatternRules []*PatternRule
	PatternVars  []PatternVarEntry
	VPathGlobal  []string
	VPathByPat   []VPathEntry
	LibPatterns  []pattern.Pattern
	Includes     []string
	RestartCount int
	WorkDir      string
	MakeLevel    int
	Exported     map[string]bool
	// ExportAll is set by a bare "export" directive: every variable bound
	// in Global at sub-make invocation time is propagated, not just the
	// names collected in Exported.
	ExportAll bool
	Overrides    []Override
	DefaultTarget string
	// FlagsString is the short+long MAKEFLAGS text assembled by the CLI
	// front-end (e.g. "j2" or "j2 --no-print-directory"); the engine only
	// appends the override list after it.
	FlagsString string

	FS            FileSystem
	Glob          func(dir, pattern string) ([]string, error)
	Shell         func(cmd string) (string, error)
	Scheduler     Scheduler
	PrepareCmd    func(line string) (argv []string, useShell bool)
	Stdout        io.Writer
	WarnFn        func(loc errs.Location, format string, args ...any)
	// DebugFn, when non-nil, receives implicit-rule-search trace lines for
	// --debug-log (spec.md §6); variable lookups are traced through
	// expand.Scope.SetDebugFn instead. Nil means
	// tracing is disabled and callers must not bother formatting it.
	DebugFn func(format string, args ...any)
}

// New creates an empty Makefile rooted at workDir.
func New(workDir string) *Makefile {
	return &Makefile{
		Global:      expand.NewGlobalScope(),
		Targets:     make(map[string]*Target),
		Exported:    make(map[string]bool),
		WorkDir:     workDir,
		LibPatterns: []pattern.Pattern{pattern.Parse("lib%.so"), pattern.Parse("lib%.a")},
	}
}

// GetOrCreate returns the Target named name, creating it (lazily, with a
// scope parented on the global scope) on first reference, per spec.md §3's
// lifecycle note.
func (mf *Makefile) GetOrCreate(name string) *Target {
	if t, ok := mf.Targets[name]; ok {
		return t
	}
	t := &Target{Name: name, Scope: expand.NewScope(mf.Global)}
	mf.Targets[name] = t
	return t
}

func (mf *Makefile) warn(loc errs.Location, format string, args ...any) {
	if mf.WarnFn != nil {
		mf.WarnFn(loc, format, args...)
	}
}

func (mf *Makefile) debugf(format string, args ...any) {
	if mf.DebugFn != nil {
		mf.DebugFn(format, args...)
	}
}

// allPrereqNames returns the deduplicated, declaration-ordered union of
// every rule's prerequisite names on t, used to chain Make calls in
// order (spec.md §4.9's ordering guarantee (b)).
func (mf *Makefile) allPrereqNames(t *Target) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range t.Rules {
		for _, p := range r.Prereqs() {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

func splitLastSlash(name string) (dir, file string) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[:i+1], name[i+1:]
		}
	}
	return "", name
}

func splitDF(val string) (dir, file string) {
	words := strings.Fields(val)
	ds := make([]string, len(words))
	fs := make([]string, len(words))
	for i, w := range words {
		d, f := splitLastSlash(w)
		if d == "" {
			d = "./"
		}
		if len(d) > 1 {
			d = strings.TrimSuffix(d, "/")
		}
		ds[i], fs[i] = d, f
	}
	return strings.Join(ds, " "), strings.Join(fs, " ")
}
