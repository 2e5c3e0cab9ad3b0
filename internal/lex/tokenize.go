// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package lex

import (
	"strings"

	"github.com/gomake-project/gomake/internal/errs"
)

// Mode selects which escape/comment/continuation rules apply when joining
// physical lines into a virtual line, per spec.md §4.1.
type Mode int

const (
	// ModeMakefile implements itermakefile: \# -> #, \\# -> literal \ then
	// comment, trailing \ + newline folds to a single space (continuation),
	// # begins a comment to the logical end of line.
	ModeMakefile Mode = iota
	// ModeCommand implements itercommand: trailing \ + newline stays
	// literal and the continuation line is appended verbatim (minus one
	// leading tab); no comment handling.
	ModeCommand
	// ModeDefine implements iterdefine: like ModeMakefile, but tracks a
	// nested define/endef counter and a line that reaches EOF without
	// closing is a syntax error.
	ModeDefine
)

// VirtualLine is one logical line: physical lines joined by continuations,
// together with the Location at which its text begins.
type VirtualLine struct {
	Text string
	Loc  errs.Location
}

// Reader produces VirtualLines from a Buffer according to Mode, covering
// three of the four tokenizer generators named in spec.md §4.1 (there is no
// raw iterdata mode). Unlike pymake's
// character-level generators, Reader materializes a whole logical line at
// once — callers that need to rescan a line's characters (the parser, the
// expansion sub-parser) do so against the returned Text directly. This
// preserves the documented escape/continuation/comment semantics while
// fitting Go's iterator-by-method idiom instead of Python's coroutines.
type Reader struct {
	buf        *Buffer
	mode       Mode
	defineDeep int
	peeked     *rawLineTok
}

// rawLineTok is one physical line pulled ahead of the Reader's current
// position by peekRawLine, held until the next rawLine call consumes it.
type rawLineTok struct {
	text string
	loc  errs.Location
}

func NewReader(buf *Buffer, mode Mode) *Reader {
	return &Reader{buf: buf, mode: mode}
}

// SetMode switches which of the three Modes the next Next call dispatches
// to. Callers switch into ModeCommand for
// a rule's recipe lines and ModeDefine for a define body, then back to
// ModeMakefile once that context ends.
func (r *Reader) SetMode(mode Mode) {
	r.mode = mode
}

// Next returns the next virtual line, or ok=false at end of input.
func (r *Reader) Next() (VirtualLine, error, bool) {
	switch r.mode {
	case ModeCommand:
		return r.nextCommand()
	case ModeDefine:
		return r.nextMakefile(true)
	default:
		return r.nextMakefile(false)
	}
}

// NextForRecipe is Next, except when recipeContext is true and the next
// physical line begins with a tab: that line is read via itercommand
// (ModeCommand) instead of whatever mode is currently set, matching
// spec.md §4.3 ("the text after the tab is parsed with the command
// tokenizer"). A tab-prefixed line only means "recipe" while a rule header
// is pending; once recipeContext goes false (header body ended), ordinary
// lines -- even ones a pattern rule's next header reuses -- fall back to
// Next's mode.
func (r *Reader) NextForRecipe(recipeContext bool) (VirtualLine, error, bool) {
	if recipeContext {
		text, _, ok := r.peekRawLine()
		if ok && strings.HasPrefix(text, "\t") {
			prevMode := r.mode
			r.mode = ModeCommand
			vl, err, ok2 := r.Next()
			r.mode = prevMode
			return vl, err, ok2
		}
	}
	return r.Next()
}

// pullRawLine pulls one new physical line straight from the underlying
// Buffer, with no lookahead involved.
func (r *Reader) pullRawLine() (string, errs.Location, bool) {
	if !r.buf.Pull() {
		return "", errs.Location{}, false
	}
	// The line just pulled ends at len(data); recover its start offset from
	// the last anchor recorded by Pull.
	data := r.buf.Bytes()
	// find last '\n' before the final one to locate this line's start
	end := len(data) - 1 // trailing '\n' just appended
	start := strings.LastIndexByte(string(data[:end]), '\n') + 1
	loc := r.buf.Loc(start)
	return string(data[start:end]), loc, true
}

// rawLine returns the next physical line, consuming a previously peeked
// one first if peekRawLine has already fetched it.
func (r *Reader) rawLine() (string, errs.Location, bool) {
	if r.peeked != nil {
		p := r.peeked
		r.peeked = nil
		return p.text, p.loc, true
	}
	return r.pullRawLine()
}

// peekRawLine returns the next physical line without consuming it, pulling
// it from the Buffer on first use and caching it for the next rawLine call.
func (r *Reader) peekRawLine() (string, errs.Location, bool) {
	if r.peeked == nil {
		text, loc, ok := r.pullRawLine()
		if !ok {
			return "", errs.Location{}, false
		}
		r.peeked = &rawLineTok{text: text, loc: loc}
	}
	return r.peeked.text, r.peeked.loc, true
}

// nextMakefile implements itermakefile (inDefine=false) and iterdefine
// (inDefine=true).
func (r *Reader) nextMakefile(inDefine bool) (VirtualLine, error, bool) {
	line, loc, ok := r.rawLine()
	if !ok {
		if inDefine && r.defineDeep > 0 {
			return VirtualLine{}, errs.New(errs.Syntax, loc, "unterminated define"), true
		}
		return VirtualLine{}, nil, false
	}

	var out strings.Builder
	inComment := false
	for {
		i := 0
		for i < len(line) {
			c := line[i]
			switch {
			case inComment:
				// Comments still honor trailing continuation (consumes the
				// next physical line, contributes nothing to Text).
				if strings.HasSuffix(line, "\\") {
					goto continuation
				}
				i = len(line)
			case c == '\\' && i+1 < len(line) && line[i+1] == '#':
				out.WriteByte('#')
				i += 2
			case c == '\\' && i+2 < len(line) && line[i+1] == '\\' && line[i+2] == '#':
				out.WriteByte('\\')
				inComment = true
				i += 3
			case c == '#':
				inComment = true
				i++
			case c == '\\' && i == len(line)-1:
				// trailing backslash: continuation, folds to one space and
				// strips leading whitespace on the next physical line.
				i = len(line) // signal continuation below
				goto continuation
			default:
				out.WriteByte(c)
				i++
			}
		}
		break

	continuation:
		nextLine, _, ok := r.rawLine()
		if !ok {
			break
		}
		if !inComment {
			joined := strings.TrimRight(out.String(), " \t")
			out.Reset()
			out.WriteString(joined)
			out.WriteByte(' ')
		}
		line = strings.TrimLeft(nextLine, " \t")
		continue
	}

	if inDefine {
		text := out.String()
		trimmed := strings.TrimSpace(text)
		if trimmed == "define" || strings.HasPrefix(trimmed, "define ") {
			r.defineDeep++
		} else if trimmed == "endef" || strings.HasPrefix(trimmed, "endef ") {
			r.defineDeep--
		}
	}

	return VirtualLine{Text: out.String(), Loc: loc}, nil, true
}

// nextCommand implements itercommand: a trailing backslash-newline stays in
// the text (recipes pass it to the shell verbatim) and the continuation
// line is appended after stripping one leading tab.
func (r *Reader) nextCommand() (VirtualLine, error, bool) {
	line, loc, ok := r.rawLine()
	if !ok {
		return VirtualLine{}, nil, false
	}
	var out strings.Builder
	for {
		if strings.HasSuffix(line, "\\") {
			out.WriteString(line)
			out.WriteByte('\n')
			nextLine, _, ok := r.rawLine()
			if !ok {
				break
			}
			line = strings.TrimPrefix(nextLine, "\t")
			continue
		}
		out.WriteString(line)
		break
	}
	return VirtualLine{Text: out.String(), Loc: loc}, nil, true
}
