// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package parse

import (
	"strings"

	"github.com/gomake-project/gomake/internal/errs"
	"github.com/gomake-project/gomake/internal/expand"
	"github.com/gomake-project/gomake/internal/graph"
	"github.com/gomake-project/gomake/internal/lex"
)

// assignOpTokens is narrower than assignOrRuleTokens: used wherever a rule
// separator is never a valid reading (inside "override ...", "export ...").
var assignOpTokens = lex.NewTokenList([]string{":=", "+=", "?=", "="}, false)

// handleAssignment implements spec.md §4.4's four operators against scope,
// with source giving the priority tier this binding competes at.
func (p *Parser) handleAssignment(name, op, rhs string, loc errs.Location, source expand.Source, scope *expand.Scope) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.New(errs.Syntax, loc, "assignment with no variable name")
	}
	return applyAssignmentTo(scope, name, op, rhs, source)
}

// ApplyCommandLineAssignment applies a "VAR=value" or "VAR:=value" word
// given on the command line, at CommandLine priority, and records it in
// mf.Overrides for MAKEFLAGS re-export to sub-makes (spec.md §4.3, §6).
func ApplyCommandLineAssignment(mf *graph.Makefile, text string) error {
	start, end, tok, ok := assignOpTokens.Find(text, 0)
	if !ok {
		return errs.New(errs.Syntax, errs.Location{}, "malformed command-line assignment: %q", text)
	}
	name := strings.TrimSpace(text[:start])
	if err := applyAssignmentTo(mf.Global, name, tok, text[end:], expand.CommandLine); err != nil {
		return err
	}
	mf.Overrides = append(mf.Overrides, graph.Override{Text: text})
	return nil
}

func applyAssignmentTo(scope *expand.Scope, name, op, rhs string, source expand.Source) error {
	rhs = strings.TrimSpace(rhs)
	switch op {
	case "=":
		_, err := scope.Set(name, expand.Recursive, source, rhs)
		return err
	case ":=":
		_, err := scope.Set(name, expand.Simple, source, rhs)
		return err
	case "?=":
		if _, _, ok := scope.Lookup(name); ok {
			return nil
		}
		_, err := scope.Set(name, expand.Recursive, source, rhs)
		return err
	case "+=":
		_, err := scope.Append(name, source, rhs)
		return err
	}
	return errs.New(errs.Internal, errs.Location{}, "unknown assignment operator %q", op)
}
