// Package logging configures logrus for the app and the CLI. Components take
// a *logrus.Entry tagged with their category.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Category constants for consistent logging categories.
const (
	CategoryApp        = "App"
	CategorySession    = "Session"
	CategoryCamera     = "Camera"
	CategoryScoring    = "Scoring"
	CategoryTranscribe = "Transcribe"
	CategoryAudio      = "Audio"
	CategoryGemini     = "Gemini"
	CategoryArtifact   = "Artifact"
)

// Options selects level and output format.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New builds the root logger. Unknown levels fall back to info and unknown
// formats to text.
func New(opts Options) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if opts.Output != nil {
		logger.SetOutput(opts.Output)
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// Component returns an entry tagged with category.
func Component(logger *logrus.Logger, category string) *logrus.Entry {
	if logger == nil {
		return Discard()
	}
	return logger.WithField("component", category)
}

// Discard returns an entry that drops everything.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

// OrDiscard returns entry, or a discarding entry when entry is nil.
func OrDiscard(entry *logrus.Entry) *logrus.Entry {
	if entry == nil {
		return Discard()
	}
	return entry
}
