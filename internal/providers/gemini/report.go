package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"interviewcoach/internal/domain"
	"interviewcoach/internal/ports"
)

// ReportGenerator implements ports.ReportGenerator.
type ReportGenerator struct {
	client *Client
}

func NewReportGenerator(client *Client) *ReportGenerator {
	return &ReportGenerator{client: client}
}

func (g *ReportGenerator) Generate(ctx context.Context, req ports.ReportRequest) (domain.Report, error) {
	prompt, err := reportPrompt(req)
	if err != nil {
		return domain.Report{}, err
	}
	text, err := g.client.generate(ctx, prompt)
	if err != nil {
		return domain.Report{}, err
	}
	report, err := parseReport(text)
	if err != nil {
		return domain.Report{}, err
	}
	report.Role = req.Role
	return report, nil
}

func reportPrompt(req ports.ReportRequest) (string, error) {
	transcript, err := json.MarshalIndent(req.Answers, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert interview coach and technical recruiter. Analyze the following interview session for the role of %q.\n", req.Role)
	b.WriteString("Using the candidate's answers and the body language metrics, generate a detailed performance report.\n\n")
	b.WriteString("Body language metrics (0-100):\n")
	fmt.Fprintf(&b, "- Posture score: %.0f (consistency of head position)\n", req.Final.Posture)
	fmt.Fprintf(&b, "- Eye contact score: %.0f (focus on camera)\n\n", req.Final.EyeContact)
	b.WriteString("Interview transcript:\n")
	b.Write(transcript)
	b.WriteString(`

Analysis instructions:
1. Technical clarity (0-100): correctness, depth and clarity of technical answers. Be strict.
2. Communication (0-100): fluency, STAR structure and confidence. Estimate filler words.
3. Vocabulary: one of Basic, Intermediate, Advanced, Expert.
4. Three key strengths.
5. Three growth areas.
6. A short critique for each answer.
7. Overall score (0-100): a weighted average. Give low scores, even 0, for poor performance.

Return only raw JSON (no markdown) with this structure:
{"overallScore": number, "technicalScore": number, "communicationScore": number, "bodyLanguageScore": number,
 "vocabularyLevel": "string", "estimatedFillerWords": number, "strengths": ["string"], "weaknesses": ["string"],
 "questionFeedback": [{"questionId": number, "feedback": "string", "score": number}],
 "summary": "2-3 sentences summarizing the candidate's performance."}
`)
	return b.String(), nil
}

// wireReport accepts fractional scores, which models occasionally emit.
type wireReport struct {
	OverallScore         float64 `json:"overallScore"`
	TechnicalScore       float64 `json:"technicalScore"`
	CommunicationScore   float64 `json:"communicationScore"`
	BodyLanguageScore    float64 `json:"bodyLanguageScore"`
	VocabularyLevel      string  `json:"vocabularyLevel"`
	EstimatedFillerWords float64 `json:"estimatedFillerWords"`
	Strengths            []string `json:"strengths"`
	Weaknesses           []string `json:"weaknesses"`
	QuestionFeedback     []struct {
		QuestionID float64 `json:"questionId"`
		Feedback   string  `json:"feedback"`
		Score      float64 `json:"score"`
	} `json:"questionFeedback"`
	Summary string `json:"summary"`
}

func parseReport(text string) (domain.Report, error) {
	body := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(text, "```json", ""), "```", ""))
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		body = body[start : end+1]
	}

	var w wireReport
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return domain.Report{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	report := domain.Report{
		OverallScore:         score(w.OverallScore),
		TechnicalScore:       score(w.TechnicalScore),
		CommunicationScore:   score(w.CommunicationScore),
		BodyLanguageScore:    score(w.BodyLanguageScore),
		VocabularyLevel:      strings.TrimSpace(w.VocabularyLevel),
		EstimatedFillerWords: int(math.Max(0, math.Round(w.EstimatedFillerWords))),
		Strengths:            w.Strengths,
		Weaknesses:           w.Weaknesses,
		Summary:              strings.TrimSpace(w.Summary),
	}
	for _, qf := range w.QuestionFeedback {
		report.QuestionFeedback = append(report.QuestionFeedback, domain.QuestionFeedback{
			QuestionID: int(qf.QuestionID),
			Feedback:   strings.TrimSpace(qf.Feedback),
			Score:      score(qf.Score),
		})
	}
	return report, nil
}

func score(v float64) int {
	return int(math.Round(math.Min(100, math.Max(0, v))))
}
