// Package questionbank serves interview questions from a local YAML file so
// sessions can run without a model.
package questionbank

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"interviewcoach/internal/domain"
	"interviewcoach/internal/ports"
)

var ErrNoMatchingQuestions = errors.New("question bank has no questions for this role and mode")

type entry struct {
	Question   string   `yaml:"question"`
	Type       string   `yaml:"type"`
	Difficulty string   `yaml:"difficulty"`
	Roles      []string `yaml:"roles"`
}

type file struct {
	Questions []entry `yaml:"questions"`
}

// Bank implements ports.QuestionSource over a fixed list.
type Bank struct {
	entries []entry
}

func Load(path string) (*Bank, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open question bank: %w", err)
	}
	defer f.Close()

	var doc file
	if err := yaml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode question bank %q: %w", path, err)
	}
	for i, e := range doc.Questions {
		if strings.TrimSpace(e.Question) == "" {
			return nil, fmt.Errorf("question bank %q: entry %d has no question", path, i+1)
		}
	}
	return &Bank{entries: doc.Questions}, nil
}

func (b *Bank) Len() int {
	return len(b.entries)
}

// Generate returns up to req.Count questions in file order. An entry matches
// when its type equals the mode (or is blank) and it lists the role (or no
// roles). Entries of another difficulty are used only when nothing else
// matches.
func (b *Bank) Generate(_ context.Context, req ports.QuestionRequest) ([]domain.Question, error) {
	matched := b.filter(req, true)
	if len(matched) == 0 {
		matched = b.filter(req, false)
	}
	if len(matched) == 0 {
		return nil, ErrNoMatchingQuestions
	}
	if req.Count > 0 && len(matched) > req.Count {
		matched = matched[:req.Count]
	}

	questions := make([]domain.Question, len(matched))
	for i, e := range matched {
		questions[i] = domain.Question{
			ID:         i + 1,
			Question:   strings.TrimSpace(e.Question),
			Type:       firstNonEmpty(e.Type, req.Mode),
			Difficulty: firstNonEmpty(e.Difficulty, req.Difficulty),
		}
	}
	return questions, nil
}

func (b *Bank) filter(req ports.QuestionRequest, matchDifficulty bool) []entry {
	var out []entry
	for _, e := range b.entries {
		if e.Type != "" && req.Mode != "" && !strings.EqualFold(e.Type, req.Mode) {
			continue
		}
		if !hasRole(e.Roles, req.Role) {
			continue
		}
		if matchDifficulty && req.Difficulty != "" && e.Difficulty != "" && !strings.EqualFold(e.Difficulty, req.Difficulty) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func hasRole(roles []string, role string) bool {
	if len(roles) == 0 || role == "" {
		return true
	}
	for _, r := range roles {
		if strings.EqualFold(strings.TrimSpace(r), role) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
