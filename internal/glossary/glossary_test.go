package glossary

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGlossaryLiteralAndSubstitutionEntries(t *testing.T) {
	t.Parallel()

	g, err := Parse(strings.NewReader(`
# spoken => written
cooper netties => Kubernetes
s/\bpost\s*gres\b/PostgreSQL/g
`), 10)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", g.Len())
	}

	out, err := g.Apply("I ran Cooper Netties on post gres and postgres")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if out != "I ran Kubernetes on PostgreSQL and PostgreSQL" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestGlossaryLiteralRespectsWordBoundaries(t *testing.T) {
	t.Parallel()

	g, err := Parse(strings.NewReader("go => Go\n"), 10)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	out, err := g.Apply("i wrote go services for google")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if out != "i wrote Go services for google" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestGlossaryLiteralStartingWithS(t *testing.T) {
	t.Parallel()

	g, err := Parse(strings.NewReader("solid principals => SOLID principles\ns-curve => S-curve\n"), 10)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	out, err := g.Apply("solid principals on an s-curve")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if out != "SOLID principles on an S-curve" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestGlossarySubstitutionWithoutGlobalReplacesFirstOnly(t *testing.T) {
	t.Parallel()

	g, err := Parse(strings.NewReader("s/um,? //\n"), 1)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	out, err := g.Apply("um, so um I think")
	if err == nil {
		t.Fatalf("expected unsettled error with pass limit 1, got %q", out)
	}

	g, err = Parse(strings.NewReader("s/(\\w+) cache/$1-cache/\n"), 10)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	term := g.terms[0]
	if got := term.apply("redis cache and memory cache"); got != "redis-cache and memory cache" {
		t.Fatalf("unexpected first-only output: %q", got)
	}
}

func TestGlossaryIteratesUntilStable(t *testing.T) {
	t.Parallel()

	g, err := Parse(strings.NewReader("a => b\nb => c\n"), 5)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	out, err := g.Apply("a")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if out != "c" {
		t.Fatalf("expected c, got %q", out)
	}
}

func TestGlossaryRejectsBadLines(t *testing.T) {
	t.Parallel()

	cases := []string{
		"not a rule",
		" => empty source",
		"s/foo/bar/x",
		"s/unterminated",
	}
	for _, line := range cases {
		if _, err := Parse(strings.NewReader(line), 10); err == nil {
			t.Fatalf("expected error for %q", line)
		}
	}
}

func TestLoadMissingOrBlankPathIsEmpty(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.glossary")} {
		g, err := Load(path, 0)
		if err != nil {
			t.Fatalf("load %q failed: %v", path, err)
		}
		if g.Len() != 0 {
			t.Fatalf("expected empty glossary for %q", path)
		}
		if out, _ := g.Apply("unchanged"); out != "unchanged" {
			t.Fatalf("unexpected output: %q", out)
		}
	}
}

func TestLoadReportsLineNumbers(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "terms.glossary")
	if err := os.WriteFile(path, []byte("a => b\n\nbroken\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	_, err := Load(path, 10)
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected line 3 error, got %v", err)
	}
}
