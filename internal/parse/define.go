// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package parse

import (
	"strings"

	"github.com/gomake-project/gomake/internal/errs"
	"github.com/gomake-project/gomake/internal/expand"
)

// beginDefine starts collecting a "define NAME [op]" ... "endef" body.
// source lets "override define" bind at Override priority.
func (p *Parser) beginDefine(rest string, loc errs.Location, source expand.Source) error {
	name := rest
	op := "="
	if start, end, tok, ok := assignOpTokens.Find(rest, 0); ok {
		name = strings.TrimSpace(rest[:start])
		op = tok
		_ = end
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.New(errs.Syntax, loc, "define with no variable name")
	}
	p.inDefine = true
	p.defineVar = name
	p.defineOp = op
	p.defineSource = source
	p.defineDepth = 0
	p.defineBody = nil
	return nil
}

// handleDefineLine is called for every physical line while inDefine is set,
// tracking nested define/endef pairs so an "endef" inside the body being
// collected doesn't close the outer define prematurely.
func (p *Parser) handleDefineLine(text string, loc errs.Location) error {
	trimmed := strings.TrimSpace(text)
	if _, ok := matchKeyword(trimmed, "endef"); ok {
		if p.defineDepth > 0 {
			p.defineDepth--
			p.defineBody = append(p.defineBody, text)
			return nil
		}
		p.inDefine = false
		body := strings.Join(p.defineBody, "\n")
		p.defineBody = nil
		return p.finishDefine(body, loc)
	}
	if _, ok := matchKeyword(trimmed, "define"); ok {
		p.defineDepth++
	}
	p.defineBody = append(p.defineBody, text)
	return nil
}

func (p *Parser) finishDefine(body string, loc errs.Location) error {
	switch p.defineOp {
	case ":=":
		_, err := p.MF.Global.Set(p.defineVar, expand.Simple, p.defineSource, body)
		return err
	case "+=":
		_, err := p.MF.Global.Append(p.defineVar, p.defineSource, body)
		return err
	case "?=":
		if _, _, ok := p.MF.Global.Lookup(p.defineVar); ok {
			return nil
		}
		_, err := p.MF.Global.Set(p.defineVar, expand.Recursive, p.defineSource, body)
		return err
	default:
		_, err := p.MF.Global.Set(p.defineVar, expand.Recursive, p.defineSource, body)
		return err
	}
}
