// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

// Package expand implements the makefile value model of spec.md §3/§4.2/
// §4.4: the lazy Expansion AST for variable values and recipe lines, the
// ~35-function built-in catalog, and the flavor/source variable store with
// scope chaining. The store and the AST are intentionally one package —
// a recursively-flavored Get must reparse and evaluate its raw text
// in-place, and evaluating a VariableRef must look values up in exactly
// the same store, so splitting them across packages would only add a
// mutually-recursive interface with a single implementation on each side.
package expand

import (
	"os"
	"strings"

	"github.com/gomake-project/gomake/internal/errs"
)

// Flavor is how a variable's stored text is treated on lookup (spec.md §3).
type Flavor int

const (
	Recursive Flavor = iota // raw text, re-parsed into an Expansion on each access
	Simple                  // already-resolved string
	Append                  // raw text, concatenated onto the parent scope's value
)

func (f Flavor) String() string {
	switch f {
	case Simple:
		return "simple"
	case Recursive, Append:
		return "recursive"
	default:
		return "undefined"
	}
}

// Source is the provenance of a variable binding. Lower ordinal values are
// higher priority, matching spec.md §3's override > command-line > makefile
// > environment > automatic ordering.
type Source int

const (
	Override Source = iota
	CommandLine
	MakefileSrc
	Environment
	Automatic
	undefinedSource // sentinel: never stored, only returned by Origin for a missing name
)

func (s Source) String() string {
	switch s {
	case Override:
		return "override"
	case CommandLine:
		return "command line"
	case MakefileSrc:
		return "file"
	case Environment:
		return "environment"
	case Automatic:
		return "automatic"
	default:
		return "undefined"
	}
}

// Variable is one binding: its flavor, its source, and its stored text
// (raw for Recursive/Append, resolved for Simple).
type Variable struct {
	Flavor Flavor
	Source Source
	Text   string
}

// Scope is a variable lookup chain: a map plus a parent pointer. Target and
// pattern scopes descend from the makefile's global scope; recipe scopes
// descend from target scopes (spec.md §3, §4.4).
type Scope struct {
	vars   map[string]*Variable
	parent *Scope
	debug  func(format string, args ...any)
}

// NewScope creates an empty scope with the given parent (nil for the
// makefile's global scope), inheriting the parent's debug trace sink (if
// any) so --debug-log tracing reaches every descendant scope.
func NewScope(parent *Scope) *Scope {
	s := &Scope{vars: make(map[string]*Variable), parent: parent}
	if parent != nil {
		s.debug = parent.debug
	}
	return s
}

// SetDebugFn installs a trace sink for variable lookups performed through s,
// inherited by every scope subsequently created via NewScope(s) — the
// --debug-log "variable provenance" tracing spec.md §6 names. Must be set
// before descendant (target/pattern/recipe) scopes are created.
func (s *Scope) SetDebugFn(fn func(format string, args ...any)) {
	s.debug = fn
}

// NewGlobalScope creates the root scope, importing the process environment
// as Environment-sourced Simple variables, per spec.md §6.
func NewGlobalScope() *Scope {
	s := NewScope(nil)
	for _, kv := range os.Environ() {
		name, val, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		s.vars[name] = &Variable{Flavor: Simple, Source: Environment, Text: val}
	}
	return s
}

// Parent returns the scope's parent, or nil for the global scope.
func (s *Scope) Parent() *Scope { return s.parent }

func (s *Scope) find(name string) (owner *Scope, v *Variable, ok bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return cur, v, true
		}
	}
	return nil, nil, false
}

// Lookup reports the Variable bound to name and the scope that owns it,
// without evaluating it.
func (s *Scope) Lookup(name string) (v *Variable, owner *Scope, ok bool) {
	owner, v, ok = s.find(name)
	return v, owner, ok
}

// Local reports the Variable bound to name directly in s, ignoring parents.
func (s *Scope) Local(name string) (*Variable, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// MergeMissing copies every binding from src that s does not already bind
// locally. Used to fold a matching pattern-variable scope into a target's
// scope without letting it shadow a target-specific assignment.
func (s *Scope) MergeMissing(src *Scope) {
	for name, v := range src.vars {
		if _, ok := s.vars[name]; !ok {
			cp := *v
			s.vars[name] = &cp
		}
	}
}

// LocalNames returns the names bound directly in s, ignoring parents. Used
// to implement a bare "export" directive's "propagate everything" semantics.
func (s *Scope) LocalNames() []string {
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	return names
}

// Set stores name with an immediate flavor/source/text, per spec.md §4.4:
// it refuses (returns false, no change) when an existing binding has a
// strictly higher-priority source. Recursive and Append text is stored
// raw; Simple text is resolved immediately against s.
func (s *Scope) Set(name string, flavor Flavor, source Source, text string) (bool, error) {
	if existing, ok := s.vars[name]; ok && existing.Source < source {
		return false, nil
	}
	if flavor == Simple {
		val, err := s.ResolveText(text, NewSettingStack())
		if err != nil {
			return false, err
		}
		s.vars[name] = &Variable{Flavor: Simple, Source: source, Text: val}
		return true, nil
	}
	s.vars[name] = &Variable{Flavor: flavor, Source: source, Text: text}
	return true, nil
}

// SetRaw stores name with pre-resolved text and no priority check — used
// for automatic variables and $(call)'s positional parameters.
func (s *Scope) SetRaw(name string, source Source, text string) {
	s.vars[name] = &Variable{Flavor: Simple, Source: source, Text: text}
}

// Append implements spec.md §4.4's append(): it appends to an existing
// Simple variable (resolving the fragment immediately) or, if name is
// unbound locally, stores an Append-flavored entry that folds in the
// parent scope's value on each Get — "append with no prior value degrades
// to recursive" falls out of this automatically, since an Append entry
// whose parent chain has no value for name evaluates to just its own
// fragment, indistinguishable from a plain Recursive variable.
func (s *Scope) Append(name string, source Source, text string) (bool, error) {
	if existing, ok := s.vars[name]; ok {
		if existing.Source < source {
			return false, nil
		}
		if existing.Flavor == Simple {
			val, err := s.ResolveText(text, NewSettingStack())
			if err != nil {
				return false, err
			}
			existing.Text = joinWords(existing.Text, val)
			return true, nil
		}
		existing.Text = joinWords(existing.Text, text)
		return true, nil
	}
	s.vars[name] = &Variable{Flavor: Append, Source: source, Text: text}
	return true, nil
}

func joinWords(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + " " + b
}

// Get resolves name to its value against s, per spec.md §4.2/§4.4. A
// recursive variable is reparsed and evaluated on every call; an append
// variable folds in its owner's parent's value first.
func (s *Scope) Get(name string, stack *SettingStack) (string, error) {
	owner, v, ok := s.find(name)
	if !ok {
		if s.debug != nil {
			s.debug("variable: %q is undefined", name)
		}
		return "", nil
	}
	if s.debug != nil {
		s.debug("variable: %q = %q (flavor=%s, origin=%s)", name, v.Text, v.Flavor, v.Source)
	}
	switch v.Flavor {
	case Simple:
		return v.Text, nil
	case Recursive:
		return s.resolveStacked(name, v.Text, stack)
	case Append:
		var parentVal string
		if owner.parent != nil {
			pv, err := owner.parent.Get(name, stack)
			if err != nil {
				return "", err
			}
			parentVal = pv
		}
		ownVal, err := s.resolveStacked(name, v.Text, stack)
		if err != nil {
			return "", err
		}
		return joinWords(parentVal, ownVal), nil
	default:
		return "", nil
	}
}

func (s *Scope) resolveStacked(name, text string, stack *SettingStack) (string, error) {
	if stack.Contains(name) {
		return "", errs.New(errs.Data, errs.Location{}, "recursive variable %q references itself (eventually)", name)
	}
	stack.Push(name)
	defer stack.Pop()
	exp, err := ParseExpansion(text, errs.Location{})
	if err != nil {
		return "", err
	}
	return exp.Eval(&EvalContext{Scope: s, Stack: stack})
}

// ResolveText parses and evaluates a one-off piece of text (e.g. a Simple
// assignment's right-hand side) against s.
func (s *Scope) ResolveText(text string, stack *SettingStack) (string, error) {
	if stack == nil {
		stack = NewSettingStack()
	}
	exp, err := ParseExpansion(text, errs.Location{})
	if err != nil {
		return "", err
	}
	return exp.Eval(&EvalContext{Scope: s, Stack: stack})
}

// RawText returns the unevaluated stored text for name — Simple variables
// report their (already-resolved) text, since there is nothing rawer to
// return, matching the $(value ...) contract in spec.md §4.2.
func (s *Scope) RawText(name string) (string, bool) {
	_, v, ok := s.find(name)
	if !ok {
		return "", false
	}
	return v.Text, true
}

// Origin reports the $(origin name) string for name.
func (s *Scope) Origin(name string) string {
	_, v, ok := s.find(name)
	if !ok {
		return undefinedSource.String()
	}
	return v.Source.String()
}

// FlavorOf reports the $(flavor name) string for name.
func (s *Scope) FlavorOf(name string) string {
	_, v, ok := s.find(name)
	if !ok {
		return "undefined"
	}
	return v.Flavor.String()
}

// SettingStack is the ordered set of variable names currently being
// expanded, used to detect self-reference (spec.md §3, invariant
// "setting-stack").
type SettingStack struct {
	names []string
}

func NewSettingStack() *SettingStack { return &SettingStack{} }

func (s *SettingStack) Push(name string) { s.names = append(s.names, name) }
func (s *SettingStack) Pop()             { s.names = s.names[:len(s.names)-1] }
func (s *SettingStack) Contains(name string) bool {
	for _, n := range s.names {
		if n == name {
			return true
		}
	}
	return false
}
