// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package expand

import (
	"github.com/gomake-project/gomake/internal/errs"
)

// Elem is one element of an Expansion: either a Literal run of text or a
// *FuncNode (a variable reference, substitution reference, or built-in
// function call), per spec.md §3's Expansion AST.
type Elem interface{ isElem() }

// Literal is a run of text with no further expansion.
type Literal string

func (Literal) isElem() {}

// Expansion is a lazily-evaluated value: a sequence of literal runs and
// function nodes, evaluated against an EvalContext.
type Expansion struct {
	Elems []Elem
}

// Eval evaluates every element against ctx and concatenates the results.
func (e *Expansion) Eval(ctx *EvalContext) (string, error) {
	if e == nil {
		return "", nil
	}
	var out []byte
	for _, el := range e.Elems {
		switch v := el.(type) {
		case Literal:
			out = append(out, v...)
		case *FuncNode:
			s, err := v.Eval(ctx)
			if err != nil {
				return "", err
			}
			out = append(out, s...)
		}
	}
	return string(out), nil
}

// EvalContext carries everything a FuncNode needs to evaluate itself:
// the variable scope it runs in, the self-reference detection stack, and
// the collaborators for functions that reach outside the value model
// (shell, wildcard, eval). Fields left nil make the corresponding
// function calls fail closed with a clear error rather than panic,
// so a caller that only needs pure text functions need not wire them.
type EvalContext struct {
	Scope *Scope
	Stack *SettingStack

	// WorkDir is the directory wildcard/realpath/abspath resolve against.
	WorkDir string
	// Glob expands a shell glob pattern rooted at dir, returning matches in
	// the order the filesystem collaborator produces them. Spec.md marks
	// glob expansion itself out of scope; this is the injected routine.
	Glob func(dir, pattern string) ([]string, error)
	// Shell runs cmd through the platform shell and returns its stdout.
	Shell func(cmd string) (string, error)
	// Eval applies text as makefile syntax (directives, assignments,
	// rules) to the enclosing makefile, for $(eval ...). Supplied by the
	// parser package, which depends on expand — injected here rather than
	// imported, to keep expand leaf-most in the package graph.
	Eval func(text string, loc errs.Location) error
	// Warn reports a non-fatal diagnostic (used by $(warning), and by
	// functions that degrade gracefully instead of failing).
	Warn func(loc errs.Location, format string, args ...any)
}

func (c *EvalContext) warn(loc errs.Location, format string, args ...any) {
	if c.Warn != nil {
		c.Warn(loc, format, args...)
	}
}

// child returns a copy of ctx scoped to s, sharing every other collaborator.
func (c *EvalContext) child(s *Scope) *EvalContext {
	cp := *c
	cp.Scope = s
	return &cp
}

// Kind identifies a FuncNode's variant: a plain variable reference, a
// substitution reference, or one of the built-in functions in spec.md's
// function-library table.
type Kind int

const (
	KindVarRef Kind = iota
	KindSubstRef
	KindSubst
	KindPatsubst
	KindStrip
	KindFindstring
	KindFilter
	KindFilterOut
	KindSort
	KindWord
	KindWordlist
	KindWords
	KindFirstword
	KindLastword
	KindDir
	KindNotdir
	KindSuffix
	KindBasename
	KindAddsuffix
	KindAddprefix
	KindJoin
	KindWildcard
	KindRealpath
	KindAbspath
	KindIf
	KindOr
	KindAnd
	KindForeach
	KindCall
	KindValue
	KindEval
	KindOrigin
	KindFlavor
	KindShell
	KindError
	KindWarning
	KindInfo
)

// FuncNode is a function/variable-reference node in the Expansion AST.
// Args holds one sub-Expansion per argument; for KindVarRef, Args[0] is
// the (possibly itself computed) variable name; for KindSubstRef, Args is
// [name, from, to].
type FuncNode struct {
	Kind Kind
	Loc  errs.Location
	Args []*Expansion
}

func (*FuncNode) isElem() {}

// Eval dispatches to the function's implementation. See functions.go.
func (f *FuncNode) Eval(ctx *EvalContext) (string, error) {
	return evalFunc(f, ctx)
}

func (f *FuncNode) argText(ctx *EvalContext, i int) (string, error) {
	if i >= len(f.Args) {
		return "", nil
	}
	return f.Args[i].Eval(ctx)
}

func fnError(loc errs.Location, format string, args ...any) error {
	return errs.New(errs.Data, loc, format, args...)
}
