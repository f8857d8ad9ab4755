package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"interviewcoach/internal/ports"
)

const maxSpeakBytes = 16 << 20

// Speaker implements ports.SpeechSynthesizer with Deepgram Aura. It requests
// raw linear16 so the audio can be handed straight to the speaker.
type Speaker struct {
	cfg    Config
	client *http.Client
}

func NewSpeaker(cfg Config) *Speaker {
	return &Speaker{cfg: cfg.withDefaults(), client: &http.Client{Timeout: 30 * time.Second}}
}

func (s *Speaker) Synthesize(ctx context.Context, text string) (ports.Audio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ports.Audio{}, errors.New("nothing to synthesize")
	}
	headers, err := s.cfg.authHeader()
	if err != nil {
		return ports.Audio{}, err
	}

	speakURL, err := endpoint(s.cfg.APIBaseURL, "/speak", false)
	if err != nil {
		return ports.Audio{}, err
	}
	query := speakURL.Query()
	query.Set("model", s.cfg.SpeakModel)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.Itoa(s.cfg.SpeakSampleRate))
	query.Set("container", "none")
	speakURL.RawQuery = query.Encode()

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return ports.Audio{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, speakURL.String(), bytes.NewReader(body))
	if err != nil {
		return ports.Audio{}, err
	}
	req.Header = headers
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return ports.Audio{}, fmt.Errorf("speak request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError("speak", resp); err != nil {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if len(bytes.TrimSpace(detail)) > 0 {
			return ports.Audio{}, fmt.Errorf("%w: %s", err, bytes.TrimSpace(detail))
		}
		return ports.Audio{}, err
	}

	pcm, err := io.ReadAll(io.LimitReader(resp.Body, maxSpeakBytes))
	if err != nil {
		return ports.Audio{}, fmt.Errorf("read speak audio: %w", err)
	}
	if len(pcm) == 0 {
		return ports.Audio{}, errors.New("speak returned no audio")
	}
	// linear16 samples are two bytes wide.
	if len(pcm)%2 == 1 {
		pcm = pcm[:len(pcm)-1]
	}
	return ports.Audio{PCM: pcm, SampleRate: s.cfg.SpeakSampleRate, Channels: 1}, nil
}
