// Package landmarks calls a face landmark service that runs a MediaPipe-style
// face landmarker over one JPEG frame at a time.
package landmarks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"interviewcoach/internal/domain"
	"interviewcoach/internal/ports"
)

// Client implements ports.LandmarkDetector over HTTP.
type Client struct {
	baseURL string
	c       *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		c:       &http.Client{Timeout: timeout},
	}
}

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type face struct {
	Keypoints   []point            `json:"keypoints"`
	Blendshapes map[string]float64 `json:"blendshapes"`
}

type detectResp struct {
	Faces []face `json:"faces"`
}

// Detect posts the frame to /detect. A response without faces is a valid
// observation with no keypoints.
func (h *Client) Detect(ctx context.Context, frame ports.Frame) (domain.LandmarkObservation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/detect", bytes.NewReader(frame.Data))
	if err != nil {
		return domain.LandmarkObservation{}, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := h.c.Do(req)
	if err != nil {
		return domain.LandmarkObservation{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.LandmarkObservation{}, fmt.Errorf("landmarks %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out detectResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.LandmarkObservation{}, fmt.Errorf("landmarks decode: %w", err)
	}
	return toObservation(frame.Timestamp, out), nil
}

func toObservation(ts time.Duration, resp detectResp) domain.LandmarkObservation {
	obs := domain.LandmarkObservation{Timestamp: ts}
	if len(resp.Faces) == 0 || len(resp.Faces[0].Keypoints) == 0 {
		return obs
	}
	f := resp.Faces[0]
	obs.Keypoints = make([]domain.Point, len(f.Keypoints))
	for i, p := range f.Keypoints {
		obs.Keypoints[i] = domain.Point{X: p.X, Y: p.Y}
	}
	obs.Gaze = gazeFrom(f.Blendshapes)
	return obs
}

// gazeFrom reduces eye blendshapes to one intensity per direction, measured
// on the subject's left eye as the landmarker reports it.
func gazeFrom(b map[string]float64) domain.Gaze {
	return domain.Gaze{
		Left:  b["eyeLookInLeft"],
		Right: b["eyeLookOutLeft"],
		Up:    max(b["eyeLookUp"], b["eyeLookUpLeft"], b["eyeLookUpRight"]),
		Down:  max(b["eyeLookDown"], b["eyeLookDownLeft"], b["eyeLookDownRight"]),
	}
}
