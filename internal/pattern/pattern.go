// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

// Package pattern implements GNU make's "%"-pattern matching (spec.md §3,
// §4.3 pattern rules, §4.6 implicit-rule search), grounded on the
// backslash-escaping, match/resolve/subst shape of the teacher's
// pattern.go — rewritten for a single "%" wildcard instead of the
// teacher's named-capture "{name}" syntax, per spec.md's data model.
package pattern

import "strings"

// Pattern is a 1- or 2-part pattern: a plain literal, or a "%"-pattern
// decomposed into (Prefix, Suffix) around the wildcard.
type Pattern struct {
	HasStem bool
	Prefix  string // text before the "%", or the whole literal if !HasStem
	Suffix  string // text after the "%"
	Raw     string // original, unescaped source text
}

// Parse decomposes s into a Pattern, resolving backslash-escapes of "%"
// and of backslashes that would otherwise quote a "%". Per spec.md §3,
// only backslashes "in danger of quoting %" are consumed; all others are
// left untouched.
func Parse(s string) Pattern {
	var out strings.Builder
	wildcard := -1
	i := 0
	for i < len(s) {
		if s[i] == '\\' {
			j := i
			for j < len(s) && s[j] == '\\' {
				j++
			}
			n := j - i
			if j < len(s) && s[j] == '%' {
				out.WriteString(strings.Repeat(`\`, n/2))
				if n%2 == 1 {
					out.WriteByte('%') // escaped: literal %
				} else {
					if wildcard < 0 {
						wildcard = out.Len()
					}
					out.WriteByte('%')
				}
				i = j + 1
				continue
			}
			out.WriteString(s[i:j])
			i = j
			continue
		}
		if s[i] == '%' {
			if wildcard < 0 {
				wildcard = out.Len()
			}
			out.WriteByte('%')
			i++
			continue
		}
		out.WriteByte(s[i])
		i++
	}

	cleaned := out.String()
	if wildcard < 0 {
		return Pattern{Prefix: cleaned, Raw: s}
	}
	return Pattern{
		HasStem: true,
		Prefix:  cleaned[:wildcard],
		Suffix:  cleaned[wildcard+1:],
		Raw:     s,
	}
}

// IsMatchAny reports whether this is the bare "%" pattern.
func (p Pattern) IsMatchAny() bool {
	return p.HasStem && p.Prefix == "" && p.Suffix == ""
}

// Match reports whether word matches the pattern, returning the captured
// stem (empty string, with ok=true, for a literal pattern that equals
// word exactly).
func (p Pattern) Match(word string) (stem string, ok bool) {
	if !p.HasStem {
		return "", word == p.Prefix
	}
	if len(word) < len(p.Prefix)+len(p.Suffix) {
		return "", false
	}
	if !strings.HasPrefix(word, p.Prefix) || !strings.HasSuffix(word, p.Suffix) {
		return "", false
	}
	return word[len(p.Prefix) : len(word)-len(p.Suffix)], true
}

// Resolve substitutes stem into the pattern (a no-op producing the literal
// text for a pattern with no wildcard), optionally prefixed by dir — used
// by implicit-rule search to qualify a prerequisite pattern with the
// target's directory.
func (p Pattern) Resolve(dir, stem string) string {
	if !p.HasStem {
		return dir + p.Prefix
	}
	return dir + p.Prefix + stem + p.Suffix
}

// Subst applies patsubst-style substitution of a single word: if word
// matches p, resolve replacement with the captured stem; otherwise, when
// mustmatch is false, return word unchanged (GNU make's $(name:from=to));
// when mustmatch is true and word doesn't match, ok is false. The
// internal/expand callers ($(patsubst) and substitution references) always
// pass mustmatch=false.
func (p Pattern) Subst(replacement Pattern, word string, mustmatch bool) (string, bool) {
	stem, ok := p.Match(word)
	if !ok {
		return word, !mustmatch
	}
	return replacement.Resolve("", stem), true
}
