package usecase

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"interviewcoach/internal/domain"
	"interviewcoach/internal/ports"
)

// transcriptAggregator holds the answer text built from final segments.
type transcriptAggregator struct {
	mu     sync.Mutex
	finals []string
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

// Append adds one final segment and returns the full text.
func (a *transcriptAggregator) Append(segment string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if segment = strings.TrimSpace(segment); segment != "" {
		a.finals = append(a.finals, segment)
	}
	return strings.Join(a.finals, " ")
}

func (a *transcriptAggregator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.finals, " ")
}

func (a *transcriptAggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finals = nil
}

// consumeTranscriptionEvents appends normalized finals until the stream's
// event channel closes. Interim results are dropped.
func consumeTranscriptionEvents(
	session ports.StreamingSession,
	aggregator *transcriptAggregator,
	normalizer ports.TranscriptNormalizer,
	events ports.EventSink,
	log *logrus.Entry,
	done chan struct{},
) {
	defer close(done)

	for event := range session.Events() {
		if event.Kind != domain.TranscriptKindFinal {
			continue
		}
		text := strings.TrimSpace(event.Text)
		if text == "" {
			continue
		}
		if normalizer != nil {
			normalized, err := normalizer.Apply(text)
			if err != nil {
				log.WithError(err).Warn("glossary failed; keeping raw segment")
			} else {
				text = normalized
			}
		}
		events.TranscriptUpdated(aggregator.Append(text))
	}
}
