// Package deepgram streams answer audio to Deepgram for recognition and
// synthesizes question prompts with Deepgram Aura.
package deepgram

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const defaultBaseURL = "https://api.deepgram.com/v1"

var (
	ErrMissingAPIKey = errors.New("DEEPGRAM_API_KEY is not configured")
	ErrUnauthorized  = errors.New("deepgram rejected the API key")
)

// Config controls Deepgram endpoints and models.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	// Keywords are boosted during recognition, typically the written forms
	// from the glossary.
	Keywords []string

	SpeakModel      string
	SpeakSampleRate int
}

func (c Config) withDefaults() Config {
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = "nova-2"
	}
	if c.SpeakModel == "" {
		c.SpeakModel = "aura-2-thalia-en"
	}
	if c.SpeakSampleRate <= 0 {
		c.SpeakSampleRate = 24000
	}
	return c
}

func (c Config) authHeader() (http.Header, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	headers := http.Header{}
	headers.Set("Authorization", "Token "+c.APIKey)
	return headers, nil
}

func endpoint(base string, path string, websocket bool) (*url.URL, error) {
	if websocket {
		if strings.HasPrefix(base, "https://") {
			base = "wss://" + strings.TrimPrefix(base, "https://")
		} else if strings.HasPrefix(base, "http://") {
			base = "ws://" + strings.TrimPrefix(base, "http://")
		}
	}
	u, err := url.Parse(base + path)
	if err != nil {
		return nil, fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}
	return u, nil
}

func statusError(op string, resp *http.Response) error {
	if resp == nil {
		return nil
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w (status %d)", op, ErrUnauthorized, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}
	return nil
}
