package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"interviewcoach/internal/domain"
	"interviewcoach/internal/ports"
)

const (
	maxResumeChars       = 3000
	defaultQuestionCount = 5
)

// QuestionSource implements ports.QuestionSource.
type QuestionSource struct {
	client *Client
}

func NewQuestionSource(client *Client) *QuestionSource {
	return &QuestionSource{client: client}
}

func (s *QuestionSource) Generate(ctx context.Context, req ports.QuestionRequest) ([]domain.Question, error) {
	if strings.TrimSpace(req.Role) == "" {
		return nil, fmt.Errorf("question request: role is required")
	}
	if req.Count <= 0 {
		req.Count = defaultQuestionCount
	}

	text, err := s.client.generate(ctx, questionPrompt(req))
	if err != nil {
		return nil, err
	}
	return parseQuestions(text, req)
}

func questionPrompt(req ports.QuestionRequest) string {
	var b strings.Builder
	switch {
	case req.Role == "Software Engineer" && req.Mode == "Technical":
		fmt.Fprintf(&b, "You are an expert technical interviewer. Generate %d coding and system design interview questions.\n", req.Count)
		b.WriteString("Focus on algorithms, data structures, system design, database schema and scalable architecture.\n")
		b.WriteString("Do not ask behavioral questions.\n")
	case req.Mode == "Behavioral" || req.Mode == "HR" || req.Mode == "Soft Skills":
		fmt.Fprintf(&b, "You are an expert HR and behavioral interviewer. Generate %d situational and soft-skill questions.\n", req.Count)
		b.WriteString("Focus on the STAR method, conflict resolution, teamwork, leadership and adaptability.\n")
		b.WriteString("Do not ask technical coding questions.\n")
	default:
		fmt.Fprintf(&b, "You are an expert interviewer for the role of %s. Generate %d mixed technical and behavioral questions suitable for this role.\n", req.Role, req.Count)
	}
	if company := strings.TrimSpace(req.Company); company != "" {
		fmt.Fprintf(&b, "The candidate is interviewing at %s; tailor questions to its domain where it fits.\n", company)
	}

	fmt.Fprintf(&b, "\nThe difficulty level is: %s.\n", req.Difficulty)
	b.WriteString("\nCandidate's resume context:\n")
	b.WriteString(truncateRunes(strings.TrimSpace(req.ResumeContext), maxResumeChars))
	b.WriteString("\n\nInstructions:\n")
	fmt.Fprintf(&b, "1. Generate exactly %d questions.\n", req.Count)
	fmt.Fprintf(&b, "2. Tailor the questions to the role %q and the resume context.\n", req.Role)
	fmt.Fprintf(&b, "3. Strictly adhere to the mode %q.\n", req.Mode)
	b.WriteString("4. Respond with a JSON array of objects shaped like ")
	fmt.Fprintf(&b, `[{"id": 1, "question": "...", "type": %q, "difficulty": %q}]`, req.Mode, req.Difficulty)
	b.WriteString(".\n5. Return raw JSON only, without markdown fences.\n")
	return b.String()
}

func parseQuestions(text string, req ports.QuestionRequest) ([]domain.Question, error) {
	body := stripFences(text)
	if start, end := strings.Index(body, "["), strings.LastIndex(body, "]"); start >= 0 && end > start {
		body = body[start : end+1]
	}

	var raw []domain.Question
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	questions := make([]domain.Question, 0, len(raw))
	for _, q := range raw {
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" {
			continue
		}
		if q.Type == "" {
			q.Type = req.Mode
		}
		if q.Difficulty == "" {
			q.Difficulty = req.Difficulty
		}
		questions = append(questions, q)
		if len(questions) == req.Count {
			break
		}
	}
	// Model-supplied ids are unreliable; answers are keyed by position.
	for i := range questions {
		questions[i].ID = i + 1
	}
	return questions, nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
