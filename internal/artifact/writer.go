// Package artifact persists finished sessions as JSON files so that answers
// survive a failed report call.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"interviewcoach/internal/ports"
)

const filePrefix = "interview-session-"

// Writer implements ports.ArtifactWriter over a directory.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

func (w *Writer) Dir() string {
	return w.dir
}

// Save writes the artifact atomically and returns its path.
func (w *Writer) Save(ctx context.Context, a ports.SessionArtifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if a.SessionID == "" {
		a.SessionID = NewSessionID()
	}
	if a.EndedAt.IsZero() {
		a.EndedAt = time.Now()
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	path := filepath.Join(w.dir, fileName(a))
	tmp, err := os.CreateTemp(w.dir, ".artifact-*.json")
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("encode artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("publish artifact: %w", err)
	}
	return path, nil
}

// Load reads an artifact written by Save.
func Load(path string) (ports.SessionArtifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return ports.SessionArtifact{}, err
	}
	defer f.Close()

	var a ports.SessionArtifact
	if err := json.NewDecoder(f).Decode(&a); err != nil {
		return ports.SessionArtifact{}, fmt.Errorf("decode artifact %q: %w", path, err)
	}
	if a.SessionID == "" {
		return ports.SessionArtifact{}, errors.New("artifact has no session id")
	}
	return a, nil
}

func fileName(a ports.SessionArtifact) string {
	ts := a.EndedAt.UTC().Format("2006-01-02T15-04-05Z")
	short := a.SessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return filePrefix + ts + "-" + short + ".json"
}
