// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

// Package parse implements spec.md §4.3: directive dispatch, variable
// assignment, rule-header parsing, and recipe association over the
// virtual lines produced by internal/lex. Grounded on the teacher's
// parse.go (single-pass line dispatch keyed on leading-tab recipe
// detection and a directive-keyword switch), rewritten for GNU make's
// conditional stack, define/endef bodies, and colon-vs-equals rule/
// assignment disambiguation in place of the teacher's DSL syntax.
package parse

import (
	"os"
	"strings"

	"github.com/gomake-project/gomake/internal/errs"
	"github.com/gomake-project/gomake/internal/expand"
	"github.com/gomake-project/gomake/internal/graph"
	"github.com/gomake-project/gomake/internal/lex"
)

// directiveTokens is the keyword list scanned before assignment/rule
// tokens, per spec.md §4.3.
var directiveTokens = lex.NewTokenList([]string{
	"ifeq", "ifneq", "ifdef", "ifndef", "else", "endif",
	"define", "endef", "override", "include", "-include", "vpath",
	"export", "unexport",
}, true)

var assignOrRuleTokens = lex.NewTokenList([]string{":=", "+=", "?=", "=", "::", ":"}, false)
var ruleRemainderTokens = lex.NewTokenList([]string{":=", "+=", "?=", "=", ":", "|", ";"}, false)

// condFrame is one level of the "else if" stack, per spec.md §4.3.
type condFrame struct {
	active       bool // this branch currently selected, given all ancestors active
	everActive   bool // any branch of this chain has been active yet
	parentActive bool // the enclosing context was active when this frame opened
}

// Parser turns makefile text into a graph.Makefile by directly mutating
// one shared Makefile as it reads. A Parser has no reparse step of its own:
// each restart cycle in Run uses a new Parser over a new Makefile.
type Parser struct {
	MF *graph.Makefile

	cond []condFrame

	// pendingRules/pendingPattern hold the most recently installed rule(s),
	// used to associate a following recipe ("\t...") with the right rule.
	// A plain multi-target header shares one *Rule across its targets; a
	// static-pattern header installs one distinct *Rule per target, so
	// pendingRules is a slice either way.
	pendingRules   []*graph.Rule
	pendingPattern *graph.PatternRule

	defineVar    string
	defineOp     string
	defineSource expand.Source
	defineDepth  int
	defineBody   []string
	inDefine     bool
}

// New creates a Parser that populates mf.
func New(mf *graph.Makefile) *Parser {
	return &Parser{MF: mf}
}

// active reports whether the current conditional nesting permits
// processing ordinary (non-conditional) lines.
func (p *Parser) active() bool {
	if len(p.cond) == 0 {
		return true
	}
	return p.cond[len(p.cond)-1].active
}

// ParseFile reads path (a top-level makefile or an include target),
// pushing it onto MF.Includes.
func (p *Parser) ParseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	p.MF.Includes = append(p.MF.Includes, path)
	buf := lex.NewBuffer(path, lex.NewLineSource(f))
	reader := lex.NewReader(buf, lex.ModeMakefile)
	return p.parseReader(reader)
}

func (p *Parser) parseReader(reader *lex.Reader) error {
	for {
		var vl lex.VirtualLine
		var err error
		var ok bool
		if p.inDefine {
			reader.SetMode(lex.ModeDefine)
			vl, err, ok = reader.Next()
		} else {
			reader.SetMode(lex.ModeMakefile)
			recipeContext := p.pendingPattern != nil || len(p.pendingRules) > 0
			vl, err, ok = reader.NextForRecipe(recipeContext)
		}
		if err != nil {
			return err
		}
		if !ok {
			if p.inDefine {
				return errs.New(errs.Syntax, errs.Location{}, "unterminated define %q", p.defineVar)
			}
			return nil
		}
		if err := p.handleLine(vl.Text, vl.Loc, reader); err != nil {
			return err
		}
	}
}

func (p *Parser) handleLine(text string, loc errs.Location, reader *lex.Reader) error {
	if p.inDefine {
		return p.handleDefineLine(text, loc)
	}

	if strings.HasPrefix(text, "\t") {
		if p.pendingPattern != nil || len(p.pendingRules) > 0 {
			return p.appendRecipe(text[1:], loc)
		}
		text = strings.TrimPrefix(text, "\t")
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if handled, err := p.tryConditional(trimmed, loc); handled {
		return err
	}
	if !p.active() {
		return nil
	}

	start, end, tok, ok := directiveTokens.Find(trimmed, 0)
	if ok && start == 0 {
		rest := strings.TrimSpace(trimmed[end:])
		switch tok {
		case "define":
			return p.beginDefine(rest, loc, expand.MakefileSrc)
		case "override":
			return p.handleOverrideLine(rest, loc)
		case "include":
			return p.handleInclude(rest, loc, true)
		case "-include":
			return p.handleInclude(rest, loc, false)
		case "vpath":
			return p.handleVpath(rest, loc)
		case "export":
			return p.handleExport(rest, loc)
		case "unexport":
			p.warn(loc, "unexport is not supported; ignoring")
			return nil
		case "endef":
			return errs.New(errs.Syntax, loc, "endef without define")
		}
	}

	return p.handleStatement(trimmed, loc)
}

func (p *Parser) warn(loc errs.Location, format string, args ...any) {
	if p.MF.WarnFn != nil {
		p.MF.WarnFn(loc, format, args...)
	}
}

// handleStatement dispatches a non-directive line to assignment or
// rule-header handling, per spec.md §4.3's token scan over
// {:=, +=, ?=, =, ::, :}.
func (p *Parser) handleStatement(line string, loc errs.Location) error {
	start, end, tok, ok := assignOrRuleTokens.Find(line, 0)
	if !ok {
		return errs.New(errs.Syntax, loc, "unrecognized makefile line: %q", line)
	}
	lhs := line[:start]
	rhs := line[end:]
	switch tok {
	case "=", ":=", "?=", "+=":
		return p.handleAssignment(strings.TrimSpace(lhs), tok, rhs, loc, expand.MakefileSrc, p.MF.Global)
	case ":", "::":
		return p.handleRuleHeader(lhs, rhs, tok == "::", loc)
	}
	return nil
}
