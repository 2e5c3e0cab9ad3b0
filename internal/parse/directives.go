// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package parse

import (
	"os"
	"strings"

	"github.com/gomake-project/gomake/internal/errs"
	"github.com/gomake-project/gomake/internal/expand"
	"github.com/gomake-project/gomake/internal/graph"
	"github.com/gomake-project/gomake/internal/pattern"
)

// handleOverrideLine implements the "override" directive: an assignment or
// a define body that ignores a CommandLine-sourced binding for the same name.
func (p *Parser) handleOverrideLine(rest string, loc errs.Location) error {
	if r, ok := matchKeyword(rest, "define"); ok {
		return p.beginDefine(r, loc, expand.Override)
	}
	start, end, tok, ok := assignOpTokens.Find(rest, 0)
	if !ok {
		return errs.New(errs.Syntax, loc, "malformed override directive: %q", rest)
	}
	name := strings.TrimSpace(rest[:start])
	return p.handleAssignment(name, tok, rest[end:], loc, expand.Override, p.MF.Global)
}

// handleInclude implements "include"/"-include": each word of rest (after
// expansion) names a file read in place, sharing this Parser's conditional
// and define state so nesting behaves as textual insertion.
func (p *Parser) handleInclude(rest string, loc errs.Location, required bool) error {
	val, err := p.MF.Global.ResolveText(rest, nil)
	if err != nil {
		return err
	}
	for _, name := range strings.Fields(val) {
		if err := p.ParseFile(name); err != nil {
			if !required && os.IsNotExist(err) {
				continue
			}
			return err
		}
	}
	return nil
}

// handleVpath implements spec.md's vpath directive: "vpath" clears all
// search paths, "vpath %pat" clears the one pattern's paths, and
// "vpath %pat dirs" appends a search entry.
func (p *Parser) handleVpath(rest string, loc errs.Location) error {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		p.MF.VPathByPat = nil
		return nil
	}
	fields := strings.Fields(rest)
	pat := pattern.Parse(fields[0])
	if len(fields) == 1 {
		kept := p.MF.VPathByPat[:0]
		for _, e := range p.MF.VPathByPat {
			if e.Pattern.Raw != pat.Raw {
				kept = append(kept, e)
			}
		}
		p.MF.VPathByPat = kept
		return nil
	}
	val, err := p.MF.Global.ResolveText(strings.Join(fields[1:], " "), nil)
	if err != nil {
		return err
	}
	dirs := strings.FieldsFunc(val, func(r rune) bool { return r == ' ' || r == '\t' || r == ':' })
	p.MF.VPathByPat = append(p.MF.VPathByPat, graph.VPathEntry{Pattern: pat, Dirs: dirs})
	return nil
}

// handleExport implements "export" (mark every currently- and
// later-defined variable for sub-make propagation), "export NAME..." and
// the combined "export NAME = value" form.
func (p *Parser) handleExport(rest string, loc errs.Location) error {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		p.MF.ExportAll = true
		return nil
	}
	if start, end, tok, ok := assignOpTokens.Find(rest, 0); ok {
		name := strings.TrimSpace(rest[:start])
		p.MF.Exported[name] = true
		return p.handleAssignment(name, tok, rest[end:], loc, expand.MakefileSrc, p.MF.Global)
	}
	for _, name := range strings.Fields(rest) {
		p.MF.Exported[name] = true
	}
	return nil
}
