// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package expand

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gomake-project/gomake/internal/errs"
	"github.com/gomake-project/gomake/internal/pattern"
)

// evalFunc dispatches a FuncNode to its implementation, per the function
// catalog in spec.md §4.2.
func evalFunc(f *FuncNode, ctx *EvalContext) (string, error) {
	switch f.Kind {
	case KindVarRef:
		return evalVarRef(f, ctx)
	case KindSubstRef:
		return evalSubstRef(f, ctx)
	case KindSubst:
		return textFn3(f, ctx, func(from, to, text string) string {
			return strings.ReplaceAll(text, from, to)
		})
	case KindPatsubst:
		return evalPatsubst(f, ctx)
	case KindStrip:
		return textFn1(f, ctx, func(s string) string { return strings.Join(strings.Fields(s), " ") })
	case KindFindstring:
		return evalFindstring(f, ctx)
	case KindFilter:
		return evalFilter(f, ctx, true)
	case KindFilterOut:
		return evalFilter(f, ctx, false)
	case KindSort:
		return evalSort(f, ctx)
	case KindWord:
		return evalWord(f, ctx)
	case KindWordlist:
		return evalWordlist(f, ctx)
	case KindWords:
		return textFn1(f, ctx, func(s string) string { return strconv.Itoa(len(strings.Fields(s))) })
	case KindFirstword:
		return evalEdgeWord(f, ctx, true)
	case KindLastword:
		return evalEdgeWord(f, ctx, false)
	case KindDir:
		return mapWords(f, ctx, func(w string) string { return dirOf(w) })
	case KindNotdir:
		return mapWords(f, ctx, func(w string) string { return filepath.Base(w) })
	case KindSuffix:
		return mapWordsFilter(f, ctx, suffixOf)
	case KindBasename:
		return mapWords(f, ctx, basenameOf)
	case KindAddsuffix:
		return evalAddfix(f, ctx, false)
	case KindAddprefix:
		return evalAddfix(f, ctx, true)
	case KindJoin:
		return evalJoin(f, ctx)
	case KindWildcard:
		return evalWildcard(f, ctx)
	case KindRealpath:
		return evalPathFn(f, ctx, true)
	case KindAbspath:
		return evalPathFn(f, ctx, false)
	case KindIf:
		return evalIf(f, ctx)
	case KindOr:
		return evalOr(f, ctx)
	case KindAnd:
		return evalAnd(f, ctx)
	case KindForeach:
		return evalForeach(f, ctx)
	case KindCall:
		return evalCall(f, ctx)
	case KindValue:
		return evalValue(f, ctx)
	case KindEval:
		return evalEval(f, ctx)
	case KindOrigin:
		return evalOrigin(f, ctx)
	case KindFlavor:
		return evalFlavor(f, ctx)
	case KindShell:
		return evalShell(f, ctx)
	case KindError:
		s, err := f.argText(ctx, 0)
		if err != nil {
			return "", err
		}
		return "", errs.New(errs.Data, f.Loc, "%s", s)
	case KindWarning:
		s, err := f.argText(ctx, 0)
		if err != nil {
			return "", err
		}
		ctx.warn(f.Loc, "%s", s)
		return "", nil
	case KindInfo:
		s, err := f.argText(ctx, 0)
		if err != nil {
			return "", err
		}
		ctx.warn(f.Loc, "%s", s)
		return "", nil
	default:
		return "", errs.New(errs.Internal, f.Loc, "unhandled function kind %d", f.Kind)
	}
}

func evalVarRef(f *FuncNode, ctx *EvalContext) (string, error) {
	name, err := f.argText(ctx, 0)
	if err != nil {
		return "", err
	}
	return ctx.Scope.Get(name, ctx.Stack)
}

// evalSubstRef implements "$(name:from=to)" — patsubst if from contains a
// "%", else a plain suffix-replacement shorthand for $(patsubst %from,%to,$(name)).
func evalSubstRef(f *FuncNode, ctx *EvalContext) (string, error) {
	name, err := f.argText(ctx, 0)
	if err != nil {
		return "", err
	}
	from, err := f.argText(ctx, 1)
	if err != nil {
		return "", err
	}
	to, err := f.argText(ctx, 2)
	if err != nil {
		return "", err
	}
	val, err := ctx.Scope.Get(name, ctx.Stack)
	if err != nil {
		return "", err
	}
	if !strings.Contains(from, "%") {
		from = "%" + from
		to = "%" + to
	}
	return substWords(val, from, to), nil
}

func substWords(text, from, to string) string {
	fromP := pattern.Parse(from)
	toP := pattern.Parse(to)
	words := strings.Fields(text)
	out := make([]string, len(words))
	for i, w := range words {
		r, _ := fromP.Subst(toP, w, false)
		out[i] = r
	}
	return strings.Join(out, " ")
}

func evalPatsubst(f *FuncNode, ctx *EvalContext) (string, error) {
	from, to, text, err := args3(f, ctx)
	if err != nil {
		return "", err
	}
	return substWords(text, from, to), nil
}

func textFn1(f *FuncNode, ctx *EvalContext, fn func(string) string) (string, error) {
	s, err := f.argText(ctx, 0)
	if err != nil {
		return "", err
	}
	return fn(s), nil
}

func textFn3(f *FuncNode, ctx *EvalContext, fn func(a, b, c string) string) (string, error) {
	a, b, c, err := args3(f, ctx)
	if err != nil {
		return "", err
	}
	return fn(a, b, c), nil
}

func args3(f *FuncNode, ctx *EvalContext) (a, b, c string, err error) {
	if a, err = f.argText(ctx, 0); err != nil {
		return
	}
	if b, err = f.argText(ctx, 1); err != nil {
		return
	}
	c, err = f.argText(ctx, 2)
	return
}

func evalFindstring(f *FuncNode, ctx *EvalContext) (string, error) {
	needle, hay, err := args2(f, ctx)
	if err != nil {
		return "", err
	}
	if strings.Contains(hay, needle) {
		return needle, nil
	}
	return "", nil
}

func args2(f *FuncNode, ctx *EvalContext) (a, b string, err error) {
	if a, err = f.argText(ctx, 0); err != nil {
		return
	}
	b, err = f.argText(ctx, 1)
	return
}

// evalFilter implements both $(filter) and $(filter-out): patterns (words
// of the first argument, each possibly containing "%") are matched against
// the words of the second; keep reports whether matches are kept (filter)
// or dropped (filter-out).
func evalFilter(f *FuncNode, ctx *EvalContext, keep bool) (string, error) {
	patsText, text, err := args2(f, ctx)
	if err != nil {
		return "", err
	}
	var pats []pattern.Pattern
	for _, p := range strings.Fields(patsText) {
		pats = append(pats, pattern.Parse(p))
	}
	var out []string
	for _, w := range strings.Fields(text) {
		matched := false
		for _, p := range pats {
			if _, ok := p.Match(w); ok {
				matched = true
				break
			}
		}
		if matched == keep {
			out = append(out, w)
		}
	}
	return strings.Join(out, " "), nil
}

func evalSort(f *FuncNode, ctx *EvalContext) (string, error) {
	s, err := f.argText(ctx, 0)
	if err != nil {
		return "", err
	}
	words := strings.Fields(s)
	sort.Strings(words)
	out := words[:0:0]
	for i, w := range words {
		if i == 0 || words[i-1] != w {
			out = append(out, w)
		}
	}
	return strings.Join(out, " "), nil
}

func evalWord(f *FuncNode, ctx *EvalContext) (string, error) {
	nText, text, err := args2(f, ctx)
	if err != nil {
		return "", err
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(nText))
	if convErr != nil || n < 1 {
		return "", errs.New(errs.Data, f.Loc, "word: index %q must be a positive integer", nText)
	}
	words := strings.Fields(text)
	if n > len(words) {
		return "", nil
	}
	return words[n-1], nil
}

func evalWordlist(f *FuncNode, ctx *EvalContext) (string, error) {
	sText, eText, text, err := args3(f, ctx)
	if err != nil {
		return "", err
	}
	start, e1 := strconv.Atoi(strings.TrimSpace(sText))
	end, e2 := strconv.Atoi(strings.TrimSpace(eText))
	if e1 != nil || e2 != nil || start < 1 || end < start {
		return "", errs.New(errs.Data, f.Loc, "wordlist: invalid range %q,%q", sText, eText)
	}
	words := strings.Fields(text)
	if start > len(words) {
		return "", nil
	}
	if end > len(words) {
		end = len(words)
	}
	return strings.Join(words[start-1:end], " "), nil
}

func evalEdgeWord(f *FuncNode, ctx *EvalContext, first bool) (string, error) {
	s, err := f.argText(ctx, 0)
	if err != nil {
		return "", err
	}
	words := strings.Fields(s)
	if len(words) == 0 {
		return "", nil
	}
	if first {
		return words[0], nil
	}
	return words[len(words)-1], nil
}

func mapWords(f *FuncNode, ctx *EvalContext, fn func(string) string) (string, error) {
	s, err := f.argText(ctx, 0)
	if err != nil {
		return "", err
	}
	words := strings.Fields(s)
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = fn(w)
	}
	return strings.Join(out, " "), nil
}

// mapWordsFilter is like mapWords but drops a word entirely when fn
// reports ok=false, for $(suffix ...)'s "files with no suffix contribute
// nothing" rule.
func mapWordsFilter(f *FuncNode, ctx *EvalContext, fn func(string) (string, bool)) (string, error) {
	s, err := f.argText(ctx, 0)
	if err != nil {
		return "", err
	}
	var out []string
	for _, w := range strings.Fields(s) {
		if r, ok := fn(w); ok {
			out = append(out, r)
		}
	}
	return strings.Join(out, " "), nil
}

func dirOf(w string) string {
	d := filepath.Dir(w)
	if d == "." {
		return "./"
	}
	if !strings.HasSuffix(d, "/") {
		d += "/"
	}
	return d
}

func suffixOf(w string) (string, bool) {
	ext := filepath.Ext(w)
	if ext == "" {
		return "", false
	}
	return ext, true
}

func basenameOf(w string) string {
	ext := filepath.Ext(w)
	return strings.TrimSuffix(w, ext)
}

func evalAddfix(f *FuncNode, ctx *EvalContext, prefix bool) (string, error) {
	fix, text, err := args2(f, ctx)
	if err != nil {
		return "", err
	}
	words := strings.Fields(text)
	out := make([]string, len(words))
	for i, w := range words {
		if prefix {
			out[i] = fix + w
		} else {
			out[i] = w + fix
		}
	}
	return strings.Join(out, " "), nil
}

func evalJoin(f *FuncNode, ctx *EvalContext) (string, error) {
	a, b, err := args2(f, ctx)
	if err != nil {
		return "", err
	}
	aw, bw := strings.Fields(a), strings.Fields(b)
	n := len(aw)
	if len(bw) > n {
		n = len(bw)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		var x, y string
		if i < len(aw) {
			x = aw[i]
		}
		if i < len(bw) {
			y = bw[i]
		}
		out[i] = x + y
	}
	return strings.Join(out, " "), nil
}

func evalWildcard(f *FuncNode, ctx *EvalContext) (string, error) {
	pats, err := f.argText(ctx, 0)
	if err != nil {
		return "", err
	}
	if ctx.Glob == nil {
		return "", nil
	}
	var out []string
	for _, p := range strings.Fields(pats) {
		matches, err := ctx.Glob(ctx.WorkDir, p)
		if err != nil {
			return "", errs.Wrap(errs.Data, f.Loc, err, "wildcard %q", p)
		}
		out = append(out, matches...)
	}
	return strings.Join(out, " "), nil
}

// evalPathFn implements $(abspath ...) and, when resolveSymlinks is true,
// $(realpath ...) (which additionally drops paths that don't exist).
func evalPathFn(f *FuncNode, ctx *EvalContext, resolveSymlinks bool) (string, error) {
	s, err := f.argText(ctx, 0)
	if err != nil {
		return "", err
	}
	var out []string
	for _, w := range strings.Fields(s) {
		p := w
		if !filepath.IsAbs(p) {
			p = filepath.Join(ctx.WorkDir, p)
		}
		p = filepath.Clean(p)
		if resolveSymlinks {
			real, err := filepath.EvalSymlinks(p)
			if err != nil {
				continue // nonexistent path: silently dropped, per GNU make's $(realpath)
			}
			p = real
		}
		out = append(out, filepath.ToSlash(p))
	}
	return strings.Join(out, " "), nil
}

func evalIf(f *FuncNode, ctx *EvalContext) (string, error) {
	cond, err := f.argText(ctx, 0)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cond) != "" {
		return f.argText(ctx, 1)
	}
	if len(f.Args) > 2 {
		return f.argText(ctx, 2)
	}
	return "", nil
}

func evalOr(f *FuncNode, ctx *EvalContext) (string, error) {
	for i := range f.Args {
		s, err := f.argText(ctx, i)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(s) != "" {
			return s, nil
		}
	}
	return "", nil
}

func evalAnd(f *FuncNode, ctx *EvalContext) (string, error) {
	var last string
	for i := range f.Args {
		s, err := f.argText(ctx, i)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(s) == "" {
			return "", nil
		}
		last = s
	}
	return last, nil
}

// evalForeach binds var to each word of list in a child scope and
// evaluates body, joining the results with spaces.
func evalForeach(f *FuncNode, ctx *EvalContext) (string, error) {
	varName, err := f.argText(ctx, 0)
	if err != nil {
		return "", err
	}
	list, err := f.argText(ctx, 1)
	if err != nil {
		return "", err
	}
	var out []string
	for _, w := range strings.Fields(list) {
		child := NewScope(ctx.Scope)
		child.SetRaw(strings.TrimSpace(varName), Automatic, w)
		val, err := f.Args[2].Eval(ctx.child(child))
		if err != nil {
			return "", err
		}
		out = append(out, val)
	}
	return strings.Join(out, " "), nil
}

// evalCall binds $0 (the function name) and $1..$N (the remaining
// arguments, evaluated in the caller's scope) into a child scope, then
// resolves the named variable within it, per spec.md's call semantics.
func evalCall(f *FuncNode, ctx *EvalContext) (string, error) {
	name, err := f.argText(ctx, 0)
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if ctx.Stack.Contains("call:" + name) {
		return "", errs.New(errs.Data, f.Loc, "$(call %s,...) references itself (eventually)", name)
	}

	if v, _, ok := ctx.Scope.Lookup(name); ok && v.Flavor == Simple {
		ctx.warn(f.Loc, "$(call %s,...): %s is a simple variable; arguments have no effect", name, name)
	}

	child := NewScope(ctx.Scope)
	child.SetRaw("0", Automatic, name)
	for i := 1; i < len(f.Args); i++ {
		val, err := f.Args[i].Eval(ctx)
		if err != nil {
			return "", err
		}
		child.SetRaw(strconv.Itoa(i), Automatic, val)
	}

	ctx.Stack.Push("call:" + name)
	defer ctx.Stack.Pop()
	return child.Get(name, ctx.Stack)
}

func evalValue(f *FuncNode, ctx *EvalContext) (string, error) {
	name, err := f.argText(ctx, 0)
	if err != nil {
		return "", err
	}
	text, _ := ctx.Scope.RawText(name)
	return text, nil
}

// evalEval parses text as makefile syntax and applies it to the enclosing
// makefile via the injected Eval collaborator. Calling $(eval ...) after
// the makefile has finished parsing is rejected (spec.md's Open Question
// decision, recorded in DESIGN.md): Eval is only wired during parsing, so
// a nil collaborator here means "too late", not "unsupported".
func evalEval(f *FuncNode, ctx *EvalContext) (string, error) {
	text, err := f.argText(ctx, 0)
	if err != nil {
		return "", err
	}
	if ctx.Eval == nil {
		return "", errs.New(errs.Data, f.Loc, "$(eval ...) is only valid while the makefile is being read")
	}
	if err := ctx.Eval(text, f.Loc); err != nil {
		return "", err
	}
	return "", nil
}

func evalOrigin(f *FuncNode, ctx *EvalContext) (string, error) {
	name, err := f.argText(ctx, 0)
	if err != nil {
		return "", err
	}
	return ctx.Scope.Origin(strings.TrimSpace(name)), nil
}

func evalFlavor(f *FuncNode, ctx *EvalContext) (string, error) {
	name, err := f.argText(ctx, 0)
	if err != nil {
		return "", err
	}
	return ctx.Scope.FlavorOf(strings.TrimSpace(name)), nil
}

func evalShell(f *FuncNode, ctx *EvalContext) (string, error) {
	cmd, err := f.argText(ctx, 0)
	if err != nil {
		return "", err
	}
	if ctx.Shell == nil {
		return "", errs.New(errs.Internal, f.Loc, "$(shell ...) has no shell collaborator wired")
	}
	out, err := ctx.Shell(cmd)
	if err != nil {
		ctx.warn(f.Loc, "shell: %v", err)
	}
	out = strings.TrimRight(out, "\n")
	out = strings.ReplaceAll(out, "\n", " ")
	return out, nil
}
