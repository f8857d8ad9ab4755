// Package gemini generates interview questions and the performance report
// with a Gemini-family model.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"google.golang.org/genai"
)

const DefaultModel = "gemma-3-27b-it"

var (
	ErrMissingAPIKey     = errors.New("GEMINI_API_KEY is not configured")
	ErrEmptyResponse     = errors.New("model returned no text")
	ErrMalformedResponse = errors.New("model returned malformed JSON")
)

// Config selects the model and credentials.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client wraps the models endpoint shared by the question source and the
// report generator.
type Client struct {
	models contentGenerator
	model  string
	config *genai.GenerateContentConfig
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newClient(client.Models, cfg), nil
}

func newClient(models contentGenerator, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	var genCfg *genai.GenerateContentConfig
	if cfg.Temperature > 0 {
		genCfg = &genai.GenerateContentConfig{Temperature: genai.Ptr(cfg.Temperature)}
	}
	return &Client{models: models, model: cfg.Model, config: genCfg}
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), c.config)
	if err != nil {
		return "", fmt.Errorf("generate content with %s: %w", c.model, err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// stripFences removes a surrounding markdown code fence.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}
