// Package glossary fixes terms the recognizer commonly mishears in
// interview answers ("cooper netties" => "Kubernetes") before they are
// appended to the running transcript.
package glossary

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

const defaultPassLimit = 10

// Glossary applies ordered term substitutions until the text is stable.
type Glossary struct {
	terms     []term
	passLimit int
}

type term struct {
	re          *regexp.Regexp
	replacement string
	firstOnly   bool
}

// Empty returns a glossary that leaves text untouched.
func Empty() *Glossary {
	return &Glossary{passLimit: defaultPassLimit}
}

// Load reads a glossary file. A blank path or a missing file yields an
// empty glossary.
func Load(path string, passLimit int) (*Glossary, error) {
	if strings.TrimSpace(path) == "" {
		return newGlossary(nil, passLimit), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newGlossary(nil, passLimit), nil
		}
		return nil, fmt.Errorf("open glossary %q: %w", path, err)
	}
	defer f.Close()

	g, err := Parse(f, passLimit)
	if err != nil {
		return nil, fmt.Errorf("glossary %q: %w", path, err)
	}
	return g, nil
}

// Parse reads one entry per line. Two forms are accepted:
//
//	spoken form => written form
//	s/pattern/replacement/flags
//
// Blank lines and lines starting with # are ignored.
func Parse(r io.Reader, passLimit int) (*Glossary, error) {
	var terms []term
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		terms = append(terms, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return newGlossary(terms, passLimit), nil
}

func newGlossary(terms []term, passLimit int) *Glossary {
	if passLimit <= 0 {
		passLimit = defaultPassLimit
	}
	return &Glossary{terms: terms, passLimit: passLimit}
}

// Len returns the number of entries.
func (g *Glossary) Len() int {
	return len(g.terms)
}

// Apply rewrites text. It fails if the entries keep rewriting each other
// past the pass limit.
func (g *Glossary) Apply(text string) (string, error) {
	if len(g.terms) == 0 {
		return text, nil
	}
	out := text
	for pass := 0; pass < g.passLimit; pass++ {
		changed := false
		for _, t := range g.terms {
			next := t.apply(out)
			if next != out {
				out = next
				changed = true
			}
		}
		if !changed {
			return out, nil
		}
	}
	return "", fmt.Errorf("glossary did not settle after %d passes", g.passLimit)
}

func (t term) apply(in string) string {
	if !t.firstOnly {
		return t.re.ReplaceAllString(in, t.replacement)
	}
	loc := t.re.FindStringSubmatchIndex(in)
	if loc == nil {
		return in
	}
	var dst []byte
	dst = t.re.ExpandString(dst, t.replacement, in, loc)
	return in[:loc[0]] + string(dst) + in[loc[1]:]
}

func parseLine(line string) (term, error) {
	if isSubstitution(line) {
		t, err := parseSubstitution(line)
		if err == nil || !strings.Contains(line, "=>") {
			return t, err
		}
	}
	from, to, ok := strings.Cut(line, "=>")
	if !ok {
		return term{}, errors.New("expected 'spoken => written' or s/pattern/replacement/")
	}
	from = strings.TrimSpace(from)
	if from == "" {
		return term{}, errors.New("spoken form cannot be empty")
	}
	re, err := regexp.Compile(`(?i)` + wordBoundary(from[0]) + regexp.QuoteMeta(from) + wordBoundary(from[len(from)-1]))
	if err != nil {
		return term{}, err
	}
	return term{re: re, replacement: strings.ReplaceAll(strings.TrimSpace(to), "$", "$$")}, nil
}

func wordBoundary(c byte) string {
	if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
		return `\b`
	}
	return ""
}

func isSubstitution(line string) bool {
	return len(line) > 2 && line[0] == 's' && isDelimiter(line[1])
}

func isDelimiter(c byte) bool {
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == ' ' || c == '\t' || c == '\\')
}

func parseSubstitution(line string) (term, error) {
	delim := line[1]
	fields, rest, err := splitDelimited(line[2:], delim, 2)
	if err != nil {
		return term{}, err
	}

	prefix := "i"
	firstOnly := true
	for _, flag := range strings.TrimSpace(rest) {
		switch flag {
		case 'i':
		case 'g':
			firstOnly = false
		case 'm', 's':
			prefix += string(flag)
		default:
			return term{}, fmt.Errorf("unsupported flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?" + prefix + ")" + fields[0])
	if err != nil {
		return term{}, fmt.Errorf("invalid pattern: %w", err)
	}
	return term{re: re, replacement: fields[1], firstOnly: firstOnly}, nil
}

// splitDelimited reads n delimiter-terminated fields, honoring backslash
// escapes, and returns the remainder.
func splitDelimited(s string, delim byte, n int) ([]string, string, error) {
	fields := make([]string, 0, n)
	var b strings.Builder
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			if c != delim {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == delim:
			fields = append(fields, b.String())
			b.Reset()
			if len(fields) == n {
				return fields, s[i+1:], nil
			}
		default:
			b.WriteByte(c)
		}
	}
	return nil, "", errors.New("unterminated substitution")
}
