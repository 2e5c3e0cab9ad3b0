// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package parse

import (
	"path/filepath"
	"strings"

	"github.com/gomake-project/gomake/internal/errs"
	"github.com/gomake-project/gomake/internal/expand"
	"github.com/gomake-project/gomake/internal/graph"
	"github.com/gomake-project/gomake/internal/pattern"
)

// handleRuleHeader parses everything after the first ':' or '::' found by
// handleStatement: plain/implicit rule prerequisites, an inline ';' recipe,
// a static-pattern second colon, a target/pattern-scoped variable, or a
// (rejected) '|' order-only marker, per spec.md §4.3.
func (p *Parser) handleRuleHeader(lhsRaw, rhsRaw string, doubleColon bool, loc errs.Location) error {
	targets, err := p.resolveWordsWildcard(lhsRaw)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return errs.New(errs.Syntax, loc, "rule with no targets")
	}
	hasPattern, hasPlain := false, false
	for _, w := range targets {
		if strings.Contains(w, "%") {
			hasPattern = true
		} else {
			hasPlain = true
		}
	}
	if hasPattern && hasPlain {
		return errs.New(errs.Syntax, loc, "mixed implicit and normal targets on one rule: %q", strings.Join(targets, " "))
	}

	start, end, tok, ok := ruleRemainderTokens.Find(rhsRaw, 0)
	if !ok {
		return p.installRule(targets, hasPattern, rhsRaw, nil, doubleColon, loc)
	}
	switch tok {
	case "=", ":=", "?=", "+=":
		varName := strings.TrimSpace(rhsRaw[:start])
		return p.handleTargetScopedAssignment(targets, hasPattern, varName, tok, rhsRaw[end:], loc)
	case ";":
		return p.installRule(targets, hasPattern, rhsRaw[:start], []string{rhsRaw[end:]}, doubleColon, loc)
	case "|":
		return errs.New(errs.Syntax, loc, "order-only prerequisites ('|') are not supported")
	case ":":
		if hasPattern {
			return errs.New(errs.Syntax, loc, "static-pattern rule target must not itself contain '%%'")
		}
		targetPatternText := rhsRaw[:start]
		afterColon := rhsRaw[end:]
		prereqPatternsText := afterColon
		var inline []string
		if s2, e2, t2, ok2 := ruleRemainderTokens.Find(afterColon, 0); ok2 {
			switch t2 {
			case ";":
				prereqPatternsText = afterColon[:s2]
				inline = []string{afterColon[e2:]}
			case "|":
				return errs.New(errs.Syntax, loc, "order-only prerequisites ('|') are not supported")
			}
		}
		return p.installStaticPattern(targets, targetPatternText, prereqPatternsText, inline, doubleColon, loc)
	}
	return nil
}

func (p *Parser) handleTargetScopedAssignment(targets []string, hasPattern bool, varName, op, varVal string, loc errs.Location) error {
	if hasPattern {
		for _, tpat := range targets {
			ps := expand.NewScope(p.MF.Global)
			if err := p.handleAssignment(varName, op, varVal, loc, expand.MakefileSrc, ps); err != nil {
				return err
			}
			p.MF.PatternVars = append(p.MF.PatternVars, graph.PatternVarEntry{Pattern: pattern.Parse(tpat), Scope: ps})
		}
		return nil
	}
	for _, name := range targets {
		t := p.MF.GetOrCreate(name)
		if err := p.handleAssignment(varName, op, varVal, loc, expand.MakefileSrc, t.Scope); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) installRule(targets []string, hasPattern bool, prereqsText string, inlineRecipe []string, doubleColon bool, loc errs.Location) error {
	prereqWords, err := p.resolveWordsWildcard(prereqsText)
	if err != nil {
		return err
	}

	if hasPattern {
		for _, tpat := range targets {
			pr := &graph.PatternRule{
				TargetPatterns: []pattern.Pattern{pattern.Parse(tpat)},
				PrereqPatterns: patternsOf(prereqWords),
				DoubleColon:    doubleColon,
				Loc:            loc,
			}
			p.MF.PatternRules = append(p.MF.PatternRules, pr)
			p.pendingPattern = pr
		}
		p.pendingRules = nil
		return p.appendInlineRecipe(inlineRecipe, loc)
	}

	var objs []*graph.Target
	for _, name := range targets {
		t := p.MF.GetOrCreate(name)
		t.Explicit = true
		objs = append(objs, t)
	}
	p.maybeSetDefaultGoal(targets[0])
	r := &graph.Rule{PrereqNames: prereqWords, DoubleColon: doubleColon, Loc: loc}
	for _, t := range objs {
		t.Rules = append(t.Rules, r)
	}
	p.pendingRules = []*graph.Rule{r}
	p.pendingPattern = nil
	return p.appendInlineRecipe(inlineRecipe, loc)
}

func (p *Parser) installStaticPattern(targets []string, targetPatternText, prereqPatternsText string, inlineRecipe []string, doubleColon bool, loc errs.Location) error {
	tpWords, err := p.resolveWordsWildcard(targetPatternText)
	if err != nil {
		return err
	}
	if len(tpWords) == 0 {
		return errs.New(errs.Syntax, loc, "static-pattern rule missing target pattern")
	}
	targetPat := pattern.Parse(tpWords[0])

	prereqWords, err := p.resolveWordsWildcard(prereqPatternsText)
	if err != nil {
		return err
	}
	prereqPats := patternsOf(prereqWords)

	if len(targets) > 0 {
		p.maybeSetDefaultGoal(targets[0])
	}

	var rules []*graph.Rule
	for _, name := range targets {
		stem, matched := targetPat.Match(name)
		if !matched {
			return errs.New(errs.Syntax, loc, "target %q doesn't match static-pattern target pattern %q", name, tpWords[0])
		}
		resolved := make([]string, len(prereqPats))
		for i, pp := range prereqPats {
			resolved[i] = pp.Resolve("", stem)
		}
		t := p.MF.GetOrCreate(name)
		t.Explicit = true
		r := &graph.Rule{PrereqNames: resolved, DoubleColon: doubleColon, Loc: loc}
		t.Rules = append(t.Rules, r)
		rules = append(rules, r)
	}
	p.pendingRules = rules
	p.pendingPattern = nil
	return p.appendInlineRecipe(inlineRecipe, loc)
}

// maybeSetDefaultGoal implements spec.md §4.3's default-goal rule: the
// first target of the first plain (non-pattern) rule in the makefile,
// skipping names starting with '.' (reserved for special targets, even
// though none carry engine-assigned behavior here besides .LIBPATTERNS).
func (p *Parser) maybeSetDefaultGoal(name string) {
	if p.MF.DefaultTarget != "" || strings.HasPrefix(name, ".") {
		return
	}
	p.MF.DefaultTarget = name
}

func (p *Parser) appendInlineRecipe(lines []string, loc errs.Location) error {
	for _, line := range lines {
		if err := p.appendRecipe(line, loc); err != nil {
			return err
		}
	}
	return nil
}

// appendRecipe attaches one recipe line's Expansion to whichever rule(s)
// the most recent header installed.
func (p *Parser) appendRecipe(lineText string, loc errs.Location) error {
	exp, err := expand.ParseExpansion(lineText, loc)
	if err != nil {
		return err
	}
	if p.pendingPattern != nil {
		p.pendingPattern.Commands = append(p.pendingPattern.Commands, exp)
		return nil
	}
	if len(p.pendingRules) > 0 {
		for _, r := range p.pendingRules {
			r.Commands = append(r.Commands, exp)
		}
		return nil
	}
	return errs.New(errs.Syntax, loc, "recipe line with no preceding rule")
}

func patternsOf(words []string) []pattern.Pattern {
	out := make([]pattern.Pattern, len(words))
	for i, w := range words {
		out[i] = pattern.Parse(w)
	}
	return out
}

// resolveWordsWildcard expands text against the global scope, splits it
// into words, and wildcard-expands any word containing a glob metachar.
func (p *Parser) resolveWordsWildcard(text string) ([]string, error) {
	val, err := p.MF.Global.ResolveText(text, nil)
	if err != nil {
		return nil, err
	}
	return p.expandWildcardWords(strings.Fields(val)), nil
}

func (p *Parser) expandWildcardWords(words []string) []string {
	if p.MF.Glob == nil {
		return words
	}
	out := make([]string, 0, len(words))
	for _, w := range words {
		if !strings.ContainsAny(w, "*?[") {
			out = append(out, w)
			continue
		}
		dir, pat := filepath.Split(w)
		if dir == "" {
			dir = "."
		}
		matches, err := p.MF.Glob(dir, pat)
		if err != nil || len(matches) == 0 {
			out = append(out, w)
			continue
		}
		out = append(out, matches...)
	}
	return out
}
