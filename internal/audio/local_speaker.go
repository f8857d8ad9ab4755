package audio

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

var speakerCandidates = []string{"espeak-ng", "espeak", "say"}

// CommandSpeaker speaks text with a host speech command.
type CommandSpeaker struct {
	command string
}

// FindLocalSpeaker returns the first available speech command, or nil when
// the host has none. preferred is tried before the built-in candidates.
func FindLocalSpeaker(preferred string) *CommandSpeaker {
	candidates := speakerCandidates
	if preferred = strings.TrimSpace(preferred); preferred != "" {
		candidates = append([]string{preferred}, candidates...)
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return &CommandSpeaker{command: path}
		}
	}
	return nil
}

func (s *CommandSpeaker) Command() string {
	return s.command
}

func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := exec.CommandContext(ctx, s.command, text).Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("local speech failed: %w", err)
	}
	return nil
}
