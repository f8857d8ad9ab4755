package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"interviewcoach/internal/domain"
	"interviewcoach/internal/logging"
	"interviewcoach/internal/ports"
)

const maxPrefetched = 4

// listener is the recognition side the arbiter hands the audio lock to.
type listener interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	Abort()
	Listening() bool
}

// AudioArbiter keeps question playback and answer recording mutually
// exclusive. The most recent Speak wins.
type AudioArbiter struct {
	synth    ports.SpeechSynthesizer
	player   ports.AudioPlayer
	fallback ports.LocalSpeaker
	listener listener
	log      *logrus.Entry

	mu          sync.Mutex
	seq         atomic.Uint64 // advanced only under mu
	lock        domain.AudioLock
	speakSeq    uint64
	speakCancel context.CancelFunc

	cacheMu sync.Mutex
	cache   map[string]ports.Audio
	order   []string
}

// NewAudioArbiter builds an arbiter. fallback may be nil.
func NewAudioArbiter(synth ports.SpeechSynthesizer, player ports.AudioPlayer, fallback ports.LocalSpeaker, listener listener, log *logrus.Entry) *AudioArbiter {
	return &AudioArbiter{
		synth:    synth,
		player:   player,
		fallback: fallback,
		listener: listener,
		log:      logging.OrDiscard(log),
		lock:     domain.AudioLockNone,
		cache:    make(map[string]ports.Audio),
	}
}

// Speak synthesizes and plays text, returning when playback completes or is
// preempted. Preemption is not an error. A Speak whose context is already
// done takes nothing from the current holder.
func (a *AudioArbiter) Speak(ctx context.Context, text string) error {
	speakCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	if ctx.Err() != nil {
		a.mu.Unlock()
		cancel()
		return nil
	}
	seq := a.seq.Add(1)
	previous := a.speakCancel
	wasListening := a.lock == domain.AudioLockListening
	a.speakSeq = seq
	a.speakCancel = cancel
	a.lock = domain.AudioLockSpeaking
	a.mu.Unlock()
	defer a.finishSpeak(seq, cancel)

	if previous != nil {
		previous()
	}
	if wasListening {
		a.listener.Abort()
	}

	audio, ok := a.takePrefetched(text)
	var err error
	if !ok {
		audio, err = a.synth.Synthesize(speakCtx, text)
	}
	if !a.current(seq) || speakCtx.Err() != nil {
		return nil
	}

	if err != nil {
		a.log.WithError(err).Warn("speech synthesis failed")
		if a.fallback == nil {
			return nil
		}
		if err := a.fallback.Speak(speakCtx, text); err != nil && speakCtx.Err() == nil {
			a.log.WithError(err).Warn("local speech failed")
		}
		return nil
	}

	if err := a.player.Play(speakCtx, audio); err != nil {
		if errors.Is(err, context.Canceled) || speakCtx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

func (a *AudioArbiter) current(seq uint64) bool {
	return a.seq.Load() == seq
}

func (a *AudioArbiter) finishSpeak(seq uint64, cancel context.CancelFunc) {
	cancel()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.speakSeq != seq {
		return
	}
	a.speakCancel = nil
	a.speakSeq = 0
	if a.lock == domain.AudioLockSpeaking {
		a.lock = domain.AudioLockNone
	}
}

// Prefetch synthesizes text ahead of its Speak call. Failures are dropped;
// Speak synthesizes again.
func (a *AudioArbiter) Prefetch(ctx context.Context, text string) {
	a.cacheMu.Lock()
	_, cached := a.cache[text]
	a.cacheMu.Unlock()
	if cached {
		return
	}

	audio, err := a.synth.Synthesize(ctx, text)
	if err != nil {
		a.log.WithError(err).Debug("prefetch failed")
		return
	}

	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	if _, ok := a.cache[text]; !ok {
		a.order = append(a.order, text)
	}
	a.cache[text] = audio
	for len(a.order) > maxPrefetched {
		delete(a.cache, a.order[0])
		a.order = a.order[1:]
	}
}

func (a *AudioArbiter) takePrefetched(text string) (ports.Audio, bool) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	audio, ok := a.cache[text]
	if !ok {
		return ports.Audio{}, false
	}
	delete(a.cache, text)
	for i, t := range a.order {
		if t == text {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return audio, true
}

// Forget drops all prefetched audio.
func (a *AudioArbiter) Forget() {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	a.cache = make(map[string]ports.Audio)
	a.order = nil
}

// StartListening stops any playback and hands the lock to the recognizer.
func (a *AudioArbiter) StartListening(ctx context.Context) error {
	a.mu.Lock()
	a.seq.Add(1)
	cancel := a.speakCancel
	a.speakCancel = nil
	a.speakSeq = 0
	a.lock = domain.AudioLockListening
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if err := a.listener.Start(ctx); err != nil {
		a.mu.Lock()
		if a.lock == domain.AudioLockListening {
			a.lock = domain.AudioLockNone
		}
		a.mu.Unlock()
		return err
	}
	return nil
}

// StopListening ends recognition gracefully and releases the lock.
func (a *AudioArbiter) StopListening(ctx context.Context) {
	a.listener.Stop(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lock == domain.AudioLockListening {
		a.lock = domain.AudioLockNone
	}
}

// Cancel stops playback and suppresses any speak still synthesizing.
func (a *AudioArbiter) Cancel() {
	a.mu.Lock()
	a.seq.Add(1)
	cancel := a.speakCancel
	a.speakCancel = nil
	a.speakSeq = 0
	if a.lock == domain.AudioLockSpeaking {
		a.lock = domain.AudioLockNone
	}
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Lock reports the current holder of the audio hardware.
func (a *AudioArbiter) Lock() domain.AudioLock {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lock == domain.AudioLockListening && !a.listener.Listening() {
		a.lock = domain.AudioLockNone
	}
	return a.lock
}
