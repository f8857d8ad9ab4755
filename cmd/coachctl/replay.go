package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"

	"interviewcoach/internal/domain"
	"interviewcoach/internal/scoring"
)

type replaySummary struct {
	Frames     int
	Duplicates int
	NoFace     int
	Posture    int
	Gaze       int
	Final      domain.BehavioralState
	Lowest     domain.BehavioralState
}

// replay scores a JSONL stream of observations. Feedback changes are printed
// as they happen; every > 0 also prints a line every N frames and every < 0
// suppresses per-frame output.
func replay(r io.Reader, w io.Writer, cfg scoring.Config, every int) (replaySummary, error) {
	scorer := scoring.NewScorer(cfg)
	summary := replaySummary{Final: scorer.State(), Lowest: scorer.State()}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		lastTS  int64
		seen    bool
		lastFB  = domain.FeedbackNone
		lineNo  int
		printed bool
	)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var obs domain.LandmarkObservation
		if err := json.Unmarshal([]byte(line), &obs); err != nil {
			return summary, fmt.Errorf("line %d: %w", lineNo, err)
		}
		ts := int64(obs.Timestamp)
		if seen && ts <= lastTS {
			summary.Duplicates++
			continue
		}
		lastTS, seen = ts, true

		state, feedback := scorer.Update(obs)
		summary.Frames++
		switch feedback {
		case domain.FeedbackFaceNotDetected:
			summary.NoFace++
		case domain.FeedbackCenterYourself:
			summary.Posture++
		case domain.FeedbackMaintainEyeContact:
			summary.Gaze++
		}
		summary.Final = state
		summary.Lowest.Posture = math.Min(summary.Lowest.Posture, state.Posture)
		summary.Lowest.EyeContact = math.Min(summary.Lowest.EyeContact, state.EyeContact)

		if every < 0 {
			continue
		}
		if feedback != lastFB || (every > 0 && summary.Frames%every == 0) {
			if !printed {
				fmt.Fprintf(w, "%-7s %-10s %-22s %8s %8s\n", "frame", "time", "feedback", "posture", "eye")
				printed = true
			}
			label := string(feedback)
			if label == "" {
				label = "-"
			}
			fmt.Fprintf(w, "%-7d %-10s %-22s %8.1f %8.1f\n", summary.Frames, obs.Timestamp, label, state.Posture, state.EyeContact)
		}
		lastFB = feedback
	}
	if err := scanner.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func printSummary(w io.Writer, s replaySummary) {
	fmt.Fprintf(w, "\nframes %d (duplicates skipped %d)\n", s.Frames, s.Duplicates)
	fmt.Fprintf(w, "no face %d, off-center %d, looking away %d\n", s.NoFace, s.Posture, s.Gaze)

	width := barWidth(w)
	for _, row := range []struct {
		name   string
		final  float64
		lowest float64
	}{
		{"posture", s.Final.Posture, s.Lowest.Posture},
		{"eye contact", s.Final.EyeContact, s.Lowest.EyeContact},
	} {
		fmt.Fprintf(w, "%-12s %6.1f (lowest %5.1f) %s\n", row.name, row.final, row.lowest, bar(row.final, width))
	}
}

// barWidth returns the space left for score bars, or 0 when w is not a
// terminal.
func barWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	cols, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return max(0, min(50, cols-40))
}

func bar(score float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(math.Round(score / 100 * float64(width)))
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
