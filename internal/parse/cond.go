// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package parse

import (
	"fmt"
	"strings"

	"github.com/gomake-project/gomake/internal/errs"
)

var condKeywords = []string{"ifeq", "ifneq", "ifdef", "ifndef"}

func matchKeyword(line, kw string) (rest string, ok bool) {
	if line == kw {
		return "", true
	}
	if strings.HasPrefix(line, kw+" ") || strings.HasPrefix(line, kw+"\t") {
		return strings.TrimSpace(line[len(kw):]), true
	}
	return "", false
}

// tryConditional handles ifeq/ifneq/ifdef/ifndef/else/endif. It runs ahead
// of the active() gate in handleLine, since conditional nesting must track
// correctly even inside an inactive branch.
func (p *Parser) tryConditional(line string, loc errs.Location) (bool, error) {
	for _, kw := range condKeywords {
		if rest, ok := matchKeyword(line, kw); ok {
			parentOK := p.active()
			var cond bool
			var err error
			if parentOK {
				cond, err = p.evalCondHeader(kw, rest)
				if err != nil {
					return true, err
				}
			}
			p.cond = append(p.cond, condFrame{
				active:       parentOK && cond,
				everActive:   parentOK && cond,
				parentActive: parentOK,
			})
			return true, nil
		}
	}

	if rest, ok := matchKeyword(line, "else"); ok {
		if len(p.cond) == 0 {
			return true, errs.New(errs.Syntax, loc, "else without matching ifeq/ifneq/ifdef/ifndef")
		}
		top := &p.cond[len(p.cond)-1]
		if rest == "" {
			top.active = top.parentActive && !top.everActive
			if top.active {
				top.everActive = true
			}
			return true, nil
		}
		var kw, kwRest string
		found := false
		for _, k := range condKeywords {
			if r, ok := matchKeyword(rest, k); ok {
				kw, kwRest, found = k, r, true
				break
			}
		}
		if !found {
			return true, errs.New(errs.Syntax, loc, "malformed else clause: %q", rest)
		}
		candidate := top.parentActive && !top.everActive
		cond := false
		var err error
		if candidate {
			cond, err = p.evalCondHeader(kw, kwRest)
			if err != nil {
				return true, err
			}
		}
		top.active = candidate && cond
		if top.active {
			top.everActive = true
		}
		return true, nil
	}

	if _, ok := matchKeyword(line, "endif"); ok {
		if len(p.cond) == 0 {
			return true, errs.New(errs.Syntax, loc, "endif without matching if")
		}
		p.cond = p.cond[:len(p.cond)-1]
		return true, nil
	}

	return false, nil
}

func (p *Parser) evalCondHeader(keyword, rest string) (bool, error) {
	switch keyword {
	case "ifeq", "ifneq":
		a, b, err := parseIfEqArgs(rest)
		if err != nil {
			return false, err
		}
		av, err := p.MF.Global.ResolveText(a, nil)
		if err != nil {
			return false, err
		}
		bv, err := p.MF.Global.ResolveText(b, nil)
		if err != nil {
			return false, err
		}
		eq := av == bv
		if keyword == "ifneq" {
			return !eq, nil
		}
		return eq, nil
	case "ifdef", "ifndef":
		nameExpr, err := p.MF.Global.ResolveText(rest, nil)
		if err != nil {
			return false, err
		}
		fields := strings.Fields(nameExpr)
		var name string
		if len(fields) > 0 {
			name = fields[0]
		}
		raw, ok := p.MF.Global.RawText(name)
		has := ok && raw != ""
		if keyword == "ifndef" {
			return !has, nil
		}
		return has, nil
	}
	return false, errs.New(errs.Syntax, errs.Location{}, "unknown conditional %q", keyword)
}

// parseIfEqArgs accepts both the "(a,b)" and the quoted "a" "b" forms.
func parseIfEqArgs(rest string) (a, b string, err error) {
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "(") {
		if !strings.HasSuffix(rest, ")") {
			return "", "", fmt.Errorf("malformed conditional arguments: %q", rest)
		}
		inner := rest[1 : len(rest)-1]
		idx := indexTopLevelComma(inner)
		if idx < 0 {
			return "", "", fmt.Errorf("conditional needs two comma-separated arguments: %q", rest)
		}
		return strings.TrimSpace(inner[:idx]), strings.TrimSpace(inner[idx+1:]), nil
	}
	parts, err := splitQuotedPair(rest)
	if err != nil {
		return "", "", err
	}
	return parts[0], parts[1], nil
}

func indexTopLevelComma(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '{':
			depth++
		case ')', '}':
			depth--
		case ',':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitQuotedPair(s string) ([2]string, error) {
	var out [2]string
	i, n := 0, 0
	for n < 2 {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			return out, fmt.Errorf("expected two quoted arguments: %q", s)
		}
		q := s[i]
		if q != '"' && q != '\'' {
			return out, fmt.Errorf("expected a quote in conditional argument: %q", s)
		}
		i++
		start := i
		for i < len(s) && s[i] != q {
			i++
		}
		if i >= len(s) {
			return out, fmt.Errorf("unterminated quote in conditional argument: %q", s)
		}
		out[n] = s[start:i]
		i++
		n++
	}
	return out, nil
}
