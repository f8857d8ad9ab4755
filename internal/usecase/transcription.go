package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"interviewcoach/internal/domain"
	"interviewcoach/internal/logging"
	"interviewcoach/internal/ports"
)

var (
	ErrMicPermissionDenied = errors.New("microphone permission denied")
	ErrResetWhileListening = errors.New("cannot reset the transcript while listening")
)

type channelState int

const (
	channelIdle channelState = iota
	channelStarting
	channelListening
)

// TranscriptionConfig controls microphone capture and streaming recognition.
type TranscriptionConfig struct {
	Audio       ports.AudioConfig
	Streaming   ports.StreamingConfig
	ChunkSize   int
	StopTimeout time.Duration
}

// TranscriptionChannel owns one listening session at a time and accumulates
// final recognition results into the current answer text.
type TranscriptionChannel struct {
	audio      ports.AudioCapture
	provider   ports.TranscriptionProvider
	normalizer ports.TranscriptNormalizer
	events     ports.EventSink
	cfg        TranscriptionConfig
	log        *logrus.Entry

	text *transcriptAggregator

	mu          sync.Mutex
	state       channelState
	attempt     uint64
	startCancel context.CancelFunc
	current     *listenSession
}

type listenSession struct {
	cancel     context.CancelFunc
	audio      ports.AudioSession
	stream     ports.StreamingSession
	eventsDone chan struct{}
	audioDone  chan struct{}
	started    bool
}

func NewTranscriptionChannel(
	audio ports.AudioCapture,
	provider ports.TranscriptionProvider,
	normalizer ports.TranscriptNormalizer,
	events ports.EventSink,
	cfg TranscriptionConfig,
	log *logrus.Entry,
) *TranscriptionChannel {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 4 * time.Second
	}
	return &TranscriptionChannel{
		audio:      audio,
		provider:   provider,
		normalizer: normalizer,
		events:     events,
		cfg:        cfg,
		log:        logging.OrDiscard(log),
		text:       newTranscriptAggregator(),
	}
}

// Start opens the recognition stream and the microphone. It is a no-op while
// a session is starting or listening. A Stop or Abort that arrives while the
// stream is being dialed cancels the attempt and Start returns nil.
func (c *TranscriptionChannel) Start(ctx context.Context) error {
	sessionCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.state != channelIdle {
		c.mu.Unlock()
		cancel()
		return nil
	}
	c.attempt++
	attempt := c.attempt
	c.state = channelStarting
	c.startCancel = cancel
	c.mu.Unlock()

	session, err := c.open(sessionCtx)
	if err != nil {
		cancel()
		c.mu.Lock()
		withdrawn := !c.startingLocked(attempt)
		if !withdrawn {
			c.state = channelIdle
			c.startCancel = nil
		}
		c.mu.Unlock()
		if withdrawn {
			return nil
		}
		return err
	}
	session.cancel = cancel

	c.mu.Lock()
	if !c.startingLocked(attempt) {
		c.mu.Unlock()
		c.teardown(session)
		c.log.Debug("listening withdrawn while the stream was dialed")
		return nil
	}
	c.state = channelListening
	c.startCancel = nil
	c.current = session
	session.started = true
	c.mu.Unlock()

	go consumeTranscriptionEvents(session.stream, c.text, c.normalizer, c.events, c.log, session.eventsDone)
	go newAnswerAudioPump(session.audio, session.stream, c.cfg.ChunkSize, c.events, c.log).run(session.audioDone)
	go c.watch(session)

	c.log.Info("listening started")
	return nil
}

func (c *TranscriptionChannel) startingLocked(attempt uint64) bool {
	return c.state == channelStarting && c.attempt == attempt
}

func (c *TranscriptionChannel) open(ctx context.Context) (*listenSession, error) {
	stream, err := c.provider.StartStreaming(ctx, c.cfg.Streaming)
	if err != nil {
		return nil, fmt.Errorf("start recognition: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = stream.Close()
		return nil, err
	}

	audio, err := c.audio.Start(ctx, c.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		if errors.Is(err, ports.ErrPermissionDenied) {
			return nil, fmt.Errorf("%w: %v", ErrMicPermissionDenied, err)
		}
		return nil, fmt.Errorf("start microphone: %w", err)
	}

	return &listenSession{
		audio:      audio,
		stream:     stream,
		eventsDone: make(chan struct{}),
		audioDone:  make(chan struct{}),
	}, nil
}

// watch returns the channel to Idle when the provider ends the stream on its
// own. Recognition is not restarted.
func (c *TranscriptionChannel) watch(session *listenSession) {
	<-session.eventsDone

	c.mu.Lock()
	owned := c.current == session
	if owned {
		c.current = nil
		c.state = channelIdle
	}
	c.mu.Unlock()
	if !owned {
		return
	}

	c.teardown(session)
	if err := session.stream.Wait(); err != nil {
		c.log.WithError(err).Warn("recognition ended unexpectedly")
		c.events.SessionError(domain.ErrorCodeTranscription, err.Error())
	}
}

// Stop ends listening gracefully. Capture stops first so the provider can
// flush its last finals before the channel returns to Idle. A Stop while the
// stream is still being dialed withdraws the attempt.
func (c *TranscriptionChannel) Stop(ctx context.Context) {
	c.mu.Lock()
	if c.state == channelStarting {
		startCancel := c.startCancel
		c.startCancel = nil
		c.state = channelIdle
		c.mu.Unlock()
		if startCancel != nil {
			startCancel()
		}
		return
	}
	session := c.current
	c.current = nil
	if session == nil {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := session.audio.Stop(); err != nil {
		c.log.WithError(err).Warn("microphone stop failed")
	}
	<-session.audioDone
	_ = session.stream.CloseSend()

	timeout := c.cfg.StopTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if err := awaitFinals(session.stream, timeout); err != nil {
		c.log.WithError(err).Warn("recognition stream closed with error")
	}
	<-session.eventsDone
	session.cancel()

	c.mu.Lock()
	if c.state == channelListening && c.current == nil {
		c.state = channelIdle
	}
	c.mu.Unlock()
	c.log.Info("listening stopped")
}

// Abort drops the listening session immediately. Finals already appended
// are kept.
func (c *TranscriptionChannel) Abort() {
	c.mu.Lock()
	session := c.current
	startCancel := c.startCancel
	c.current = nil
	c.startCancel = nil
	c.state = channelIdle
	c.mu.Unlock()

	if startCancel != nil {
		startCancel()
	}
	if session != nil {
		c.teardown(session)
	}
}

func (c *TranscriptionChannel) teardown(session *listenSession) {
	if session.cancel != nil {
		session.cancel()
	}
	_ = session.audio.Stop()
	_ = session.stream.Close()
	if session.started {
		<-session.eventsDone
		<-session.audioDone
	}
}

func (c *TranscriptionChannel) CurrentText() string {
	return c.text.Text()
}

// Reset clears the answer text. It is rejected while a session is starting
// or listening.
func (c *TranscriptionChannel) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != channelIdle {
		return ErrResetWhileListening
	}
	c.text.Reset()
	return nil
}

// Listening reports whether a session is starting or active.
func (c *TranscriptionChannel) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != channelIdle
}

// awaitFinals waits for the provider to flush its last results, forcing the
// stream closed after timeout.
func awaitFinals(stream ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- stream.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		_ = stream.Close()
		return <-done
	}
}
