package usecase

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"interviewcoach/internal/domain"
	"interviewcoach/internal/ports"
)

const defaultChunkSize = 4096

// answerAudioPump copies one answer's microphone PCM into its recognition
// stream.
type answerAudioPump struct {
	mic    ports.AudioSession
	stream ports.StreamingSession
	events ports.EventSink
	log    *logrus.Entry
	buf    []byte
	sent   int
}

func newAnswerAudioPump(mic ports.AudioSession, stream ports.StreamingSession, chunkSize int, events ports.EventSink, log *logrus.Entry) *answerAudioPump {
	if chunkSize < 256 {
		chunkSize = defaultChunkSize
	}
	return &answerAudioPump{
		mic:    mic,
		stream: stream,
		events: events,
		log:    log,
		buf:    make([]byte, chunkSize),
	}
}

// run forwards chunks until capture ends, then closes done.
func (p *answerAudioPump) run(done chan struct{}) {
	defer close(done)
	defer func() {
		if p.log != nil {
			p.log.WithField("bytes", p.sent).Debug("answer audio forwarded")
		}
	}()

	for {
		n, err := p.mic.Read(p.buf)
		if n > 0 && !p.forward(p.buf[:n]) {
			return
		}
		if err != nil {
			if !captureStopped(err) {
				p.events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("microphone capture error: %v", err))
			}
			return
		}
	}
}

func (p *answerAudioPump) forward(chunk []byte) bool {
	if err := p.stream.SendAudio(chunk); err != nil {
		p.events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to stream answer audio: %v", err))
		return false
	}
	p.sent += len(chunk)
	return true
}

// captureStopped reports read errors that mean Stop closed the microphone.
func captureStopped(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed)
}
