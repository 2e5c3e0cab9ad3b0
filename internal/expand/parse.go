// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package expand

import (
	"strings"

	"github.com/gomake-project/gomake/internal/errs"
)

// ParseExpansion scans raw makefile text (an assignment's right-hand side,
// a recipe line, a rule prerequisite list) into an Expansion: literal runs
// interspersed with FuncNodes for each "$x", "$(...)"  or "${...}" it finds.
func ParseExpansion(s string, loc errs.Location) (*Expansion, error) {
	var elems []Elem
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			elems = append(elems, Literal(lit.String()))
			lit.Reset()
		}
	}

	i := 0
	for i < len(s) {
		if s[i] != '$' {
			lit.WriteByte(s[i])
			i++
			continue
		}
		if i+1 >= len(s) {
			lit.WriteByte('$')
			i++
			continue
		}
		nc := s[i+1]
		switch {
		case nc == '$':
			lit.WriteByte('$')
			i += 2
		case nc == '(' || nc == '{':
			closeChar := byte(')')
			if nc == '{' {
				closeChar = '}'
			}
			depth := 1
			j := i + 2
			for j < len(s) && depth > 0 {
				switch s[j] {
				case nc:
					depth++
				case closeChar:
					depth--
					if depth == 0 {
						goto closed
					}
				}
				j++
			}
		closed:
			if depth != 0 {
				return nil, errs.New(errs.Syntax, loc, "unterminated variable reference")
			}
			inner := s[i+2 : j]
			node, err := parseDollarGroup(inner, loc)
			if err != nil {
				return nil, err
			}
			flush()
			elems = append(elems, node)
			i = j + 1
		default:
			flush()
			elems = append(elems, &FuncNode{
				Kind: KindVarRef,
				Loc:  loc,
				Args: []*Expansion{{Elems: []Elem{Literal(string(nc))}}},
			})
			i += 2
		}
	}
	flush()
	return &Expansion{Elems: elems}, nil
}

// funcArity gives the (kind, min, max) argument count for builtin function
// names; max == -1 means unbounded. Names not listed here are ordinary
// variable names, not functions.
var funcArity = map[string]struct {
	kind     Kind
	min, max int
}{
	"subst":      {KindSubst, 3, 3},
	"patsubst":   {KindPatsubst, 3, 3},
	"strip":      {KindStrip, 1, 1},
	"findstring": {KindFindstring, 2, 2},
	"filter":     {KindFilter, 2, 2},
	"filter-out": {KindFilterOut, 2, 2},
	"sort":       {KindSort, 1, 1},
	"word":       {KindWord, 2, 2},
	"wordlist":   {KindWordlist, 3, 3},
	"words":      {KindWords, 1, 1},
	"firstword":  {KindFirstword, 1, 1},
	"lastword":   {KindLastword, 1, 1},
	"dir":        {KindDir, 1, 1},
	"notdir":     {KindNotdir, 1, 1},
	"suffix":     {KindSuffix, 1, 1},
	"basename":   {KindBasename, 1, 1},
	"addsuffix":  {KindAddsuffix, 2, 2},
	"addprefix":  {KindAddprefix, 2, 2},
	"join":       {KindJoin, 2, 2},
	"wildcard":   {KindWildcard, 1, 1},
	"realpath":   {KindRealpath, 1, 1},
	"abspath":    {KindAbspath, 1, 1},
	"if":         {KindIf, 2, 3},
	"or":         {KindOr, 1, -1},
	"and":        {KindAnd, 1, -1},
	"foreach":    {KindForeach, 3, 3},
	"call":       {KindCall, 1, -1},
	"value":      {KindValue, 1, 1},
	"eval":       {KindEval, 1, 1},
	"origin":     {KindOrigin, 1, 1},
	"flavor":     {KindFlavor, 1, 1},
	"shell":      {KindShell, 1, 1},
	"error":      {KindError, 1, 1},
	"warning":    {KindWarning, 1, 1},
	"info":       {KindInfo, 1, 1},
}

// parseDollarGroup interprets the text between "$(" and ")" (or "${"/"}")
// as either a built-in function call, a substitution reference
// (name:from=to), or a plain variable reference, per spec.md §3's
// "Expansion AST" and §4.2's function-dispatch rule.
func parseDollarGroup(inner string, loc errs.Location) (*FuncNode, error) {
	wsIdx := findTopLevel(inner, " \t")
	colonIdx := findTopLevel(inner, ":")

	if wsIdx >= 0 && (colonIdx < 0 || wsIdx < colonIdx) {
		name := inner[:wsIdx]
		if spec, ok := funcArity[name]; ok {
			rest := inner[wsIdx+1:]
			argTexts := splitArgs(spec.max, rest)
			if len(argTexts) < spec.min {
				return nil, errs.New(errs.Syntax, loc, "%s: too few arguments", name)
			}
			args := make([]*Expansion, len(argTexts))
			for idx, at := range argTexts {
				e, err := ParseExpansion(at, loc)
				if err != nil {
					return nil, err
				}
				args[idx] = e
			}
			return &FuncNode{Kind: spec.kind, Loc: loc, Args: args}, nil
		}
	}

	if colonIdx >= 0 && (wsIdx < 0 || colonIdx < wsIdx) {
		rest := inner[colonIdx+1:]
		if eqIdx := findTopLevel(rest, "="); eqIdx >= 0 {
			nameExp, err := ParseExpansion(inner[:colonIdx], loc)
			if err != nil {
				return nil, err
			}
			fromExp, err := ParseExpansion(rest[:eqIdx], loc)
			if err != nil {
				return nil, err
			}
			toExp, err := ParseExpansion(rest[eqIdx+1:], loc)
			if err != nil {
				return nil, err
			}
			return &FuncNode{Kind: KindSubstRef, Loc: loc, Args: []*Expansion{nameExp, fromExp, toExp}}, nil
		}
	}

	nameExp, err := ParseExpansion(inner, loc)
	if err != nil {
		return nil, err
	}
	return &FuncNode{Kind: KindVarRef, Loc: loc, Args: []*Expansion{nameExp}}, nil
}

// findTopLevel returns the index of the first byte of s that is in chars
// and occurs at nesting depth 0 (outside any "(...)" or "{...}" group), or
// -1 if none exists.
func findTopLevel(s string, chars string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{':
			depth++
		case ')', '}':
			depth--
		default:
			if depth == 0 && strings.IndexByte(chars, s[i]) >= 0 {
				return i
			}
		}
	}
	return -1
}

// splitArgs splits s on top-level commas, stopping after max-1 splits so
// the final argument absorbs any remaining commas verbatim (GNU make's
// rule for functions with a fixed last "rest of the text" argument). A
// max of 1 never splits; a max of -1 splits on every top-level comma.
func splitArgs(max int, s string) []string {
	if max == 1 {
		return []string{s}
	}
	limit := -1
	if max > 0 {
		limit = max - 1
	}
	var parts []string
	depth := 0
	last := 0
	count := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{':
			depth++
		case ')', '}':
			depth--
		case ',':
			if depth == 0 && (limit < 0 || count < limit) {
				parts = append(parts, s[last:i])
				last = i + 1
				count++
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}
