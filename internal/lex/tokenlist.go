// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package lex

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// TokenList is a compiled matcher over a fixed set of literal tokens, used
// by the parser to find the next directive keyword or assignment operator
// in a virtual line. Keyword-form token lists additionally require the
// token to be followed by whitespace or end-of-line, so "ifdef" doesn't
// match inside "ifdefined". TokenLists are memoized by (tokens, keyword)
// since the parser builds the same handful of them on every line.
type TokenList struct {
	re      *regexp.Regexp
	Tokens  []string
	Keyword bool
}

var tlCache sync.Map // string -> *TokenList

func cacheKey(tokens []string, keyword bool) string {
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)
	k := strings.Join(sorted, "\x00")
	if keyword {
		k += "\x00KW"
	}
	return k
}

// NewTokenList builds (or returns the cached) TokenList for tokens.
func NewTokenList(tokens []string, keyword bool) *TokenList {
	key := cacheKey(tokens, keyword)
	if v, ok := tlCache.Load(key); ok {
		return v.(*TokenList)
	}

	sorted := append([]string(nil), tokens...)
	// Longest literal first so overlapping tokens (":" vs "::") match greedily.
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	var parts []string
	for _, t := range sorted {
		parts = append(parts, regexp.QuoteMeta(t))
	}
	pattern := "(?:" + strings.Join(parts, "|") + ")"
	if keyword {
		pattern += `(?:\s|$)`
	}
	tl := &TokenList{re: regexp.MustCompile(pattern), Tokens: tokens, Keyword: keyword}
	tlCache.Store(key, tl)
	return tl
}

// Find returns the start/end byte offsets of the first token match in s at
// or after offset from, and the matched token text (without the trailing
// whitespace lookahead for keyword lists), or ok=false if none is found.
func (tl *TokenList) Find(s string, from int) (start, end int, tok string, ok bool) {
	if from > len(s) {
		return 0, 0, "", false
	}
	loc := tl.re.FindStringIndex(s[from:])
	if loc == nil {
		return 0, 0, "", false
	}
	start, end = loc[0]+from, loc[1]+from
	tok = s[start:end]
	if tl.Keyword && end > start && (tok[len(tok)-1] == ' ' || tok[len(tok)-1] == '\t') {
		end--
		tok = tok[:len(tok)-1]
	}
	return start, end, tok, true
}
