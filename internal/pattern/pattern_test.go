package pattern

import "testing"

func TestParseMatchResolveRoundTrip(t *testing.T) {
	cases := []struct {
		pat, word string
		wantOK    bool
		wantStem  string
	}{
		{"%.o", "foo.o", true, "foo"},
		{"%.o", "foo.c", false, ""},
		{"src/%.c", "src/foo.c", true, "foo"},
		{"src/%.c", "other/foo.c", false, ""},
		{"%", "anything", true, "anything"},
		{"Makefile", "Makefile", true, ""},
		{"Makefile", "makefile", false, ""},
	}
	for _, c := range cases {
		p := Parse(c.pat)
		stem, ok := p.Match(c.word)
		if ok != c.wantOK {
			t.Errorf("Parse(%q).Match(%q) ok = %v, want %v", c.pat, c.word, ok, c.wantOK)
			continue
		}
		if ok && stem != c.wantStem {
			t.Errorf("Parse(%q).Match(%q) stem = %q, want %q", c.pat, c.word, stem, c.wantStem)
		}
		if ok {
			if got := p.Resolve("", stem); got != c.word {
				t.Errorf("Resolve(stem=%q) = %q, want %q", stem, got, c.word)
			}
		}
	}
}

func TestParseEscapedPercent(t *testing.T) {
	p := Parse(`100\%`)
	if p.HasStem {
		t.Fatalf("escaped %% should not be a wildcard, got HasStem=true")
	}
	if p.Prefix != "100%" {
		t.Errorf("Prefix = %q, want 100%%", p.Prefix)
	}
}

func TestParseDoubleBackslashBeforePercent(t *testing.T) {
	// "\\%" is a literal backslash followed by a wildcard %.
	p := Parse(`\\%`)
	if !p.HasStem {
		t.Fatalf("HasStem = false, want true (escaped backslash should leave %% as wildcard)")
	}
	if p.Prefix != `\` {
		t.Errorf("Prefix = %q, want \\", p.Prefix)
	}
}

func TestSubst(t *testing.T) {
	src := Parse("%.c")
	dst := Parse("%.o")
	got, ok := src.Subst(dst, "foo.c", true)
	if !ok || got != "foo.o" {
		t.Errorf("Subst(foo.c) = (%q, %v), want (foo.o, true)", got, ok)
	}
	got2, ok2 := src.Subst(dst, "foo.txt", false)
	if !ok2 || got2 != "foo.txt" {
		t.Errorf("Subst(foo.txt, mustmatch=false) = (%q, %v), want (foo.txt, true) passthrough", got2, ok2)
	}
	_, ok3 := src.Subst(dst, "foo.txt", true)
	if ok3 {
		t.Errorf("Subst(foo.txt, mustmatch=true) ok = true, want false")
	}
}

func TestIsMatchAny(t *testing.T) {
	if !Parse("%").IsMatchAny() {
		t.Error("Parse(%) should be IsMatchAny")
	}
	if Parse("%.o").IsMatchAny() {
		t.Errorf("Parse(%q) should not be IsMatchAny", "%.o")
	}
}
