package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"interviewcoach/internal/domain"
	"interviewcoach/internal/ports"
)

type fakeSynth struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	calls map[string]int
	err   error
}

func newFakeSynth() *fakeSynth {
	return &fakeSynth{gates: make(map[string]chan struct{}), calls: make(map[string]int)}
}

// hold makes synthesis of text block until the returned channel is closed.
func (f *fakeSynth) hold(text string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[text] = gate
	return gate
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) (ports.Audio, error) {
	f.mu.Lock()
	f.calls[text]++
	gate := f.gates[text]
	err := f.err
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return ports.Audio{}, err
	}
	return ports.Audio{PCM: []byte(text), SampleRate: 24000, Channels: 1}, nil
}

func (f *fakeSynth) callCount(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[text]
}

type fakePlayer struct {
	mu      sync.Mutex
	played  []string
	block   bool
	started chan string
}

func (f *fakePlayer) Play(ctx context.Context, audio ports.Audio) error {
	f.mu.Lock()
	f.played = append(f.played, string(audio.PCM))
	block := f.block
	started := f.started
	f.mu.Unlock()

	if started != nil {
		started <- string(audio.PCM)
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakePlayer) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.played...)
}

type fakeLocalSpeaker struct {
	mu     sync.Mutex
	spoken []string
}

func (f *fakeLocalSpeaker) Speak(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return nil
}

type fakeListener struct {
	mu        sync.Mutex
	listening bool
	starts    int
	aborts    int
	startErr  error
}

func (f *fakeListener) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.listening = true
	return nil
}

func (f *fakeListener) Stop(_ context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listening = false
}

func (f *fakeListener) Abort() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts++
	f.listening = false
}

func (f *fakeListener) Listening() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listening
}

func TestAudioArbiterLatestSpeakWins(t *testing.T) {
	t.Parallel()

	synth := newFakeSynth()
	gateA := synth.hold("A")
	player := &fakePlayer{}
	arbiter := NewAudioArbiter(synth, player, nil, &fakeListener{}, nil)

	doneA := make(chan error, 1)
	go func() { doneA <- arbiter.Speak(context.Background(), "A") }()
	waitFor(t, "synthesis of A", func() bool { return synth.callCount("A") == 1 })

	if err := arbiter.Speak(context.Background(), "B"); err != nil {
		t.Fatalf("speak B failed: %v", err)
	}
	close(gateA)
	if err := <-doneA; err != nil {
		t.Fatalf("preempted speak should not fail: %v", err)
	}

	played := player.snapshot()
	if len(played) != 1 || played[0] != "B" {
		t.Fatalf("expected only B to play, got %v", played)
	}
	if lock := arbiter.Lock(); lock != domain.AudioLockNone {
		t.Fatalf("expected lock released, got %s", lock)
	}
}

func TestAudioArbiterListeningPreemptsSpeaking(t *testing.T) {
	t.Parallel()

	player := &fakePlayer{block: true, started: make(chan string, 1)}
	listener := &fakeListener{}
	arbiter := NewAudioArbiter(newFakeSynth(), player, nil, listener, nil)

	done := make(chan error, 1)
	go func() { done <- arbiter.Speak(context.Background(), "question") }()
	<-player.started
	if lock := arbiter.Lock(); lock != domain.AudioLockSpeaking {
		t.Fatalf("expected speaking lock, got %s", lock)
	}

	if err := arbiter.StartListening(context.Background()); err != nil {
		t.Fatalf("start listening failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("preempted speak should not fail: %v", err)
	}
	if lock := arbiter.Lock(); lock != domain.AudioLockListening {
		t.Fatalf("expected listening lock, got %s", lock)
	}

	arbiter.StopListening(context.Background())
	if lock := arbiter.Lock(); lock != domain.AudioLockNone {
		t.Fatalf("expected lock released, got %s", lock)
	}
}

func TestAudioArbiterSpeakingPreemptsListening(t *testing.T) {
	t.Parallel()

	listener := &fakeListener{}
	arbiter := NewAudioArbiter(newFakeSynth(), &fakePlayer{}, nil, listener, nil)

	if err := arbiter.StartListening(context.Background()); err != nil {
		t.Fatalf("start listening failed: %v", err)
	}
	if err := arbiter.Speak(context.Background(), "question"); err != nil {
		t.Fatalf("speak failed: %v", err)
	}
	if listener.aborts != 1 {
		t.Fatalf("expected listener abort, got %d", listener.aborts)
	}
	if listener.Listening() {
		t.Fatalf("listener still active while speaking")
	}
}

func TestAudioArbiterFallsBackToLocalSpeaker(t *testing.T) {
	t.Parallel()

	synth := newFakeSynth()
	synth.err = errors.New("tts down")
	player := &fakePlayer{}
	local := &fakeLocalSpeaker{}
	arbiter := NewAudioArbiter(synth, player, local, &fakeListener{}, nil)

	if err := arbiter.Speak(context.Background(), "tell me about yourself"); err != nil {
		t.Fatalf("speak failed: %v", err)
	}
	if len(local.spoken) != 1 || local.spoken[0] != "tell me about yourself" {
		t.Fatalf("expected local fallback, got %v", local.spoken)
	}
	if len(player.snapshot()) != 0 {
		t.Fatalf("player should not run after synthesis failure")
	}
}

func TestAudioArbiterSynthesisFailureWithoutFallbackIsSilent(t *testing.T) {
	t.Parallel()

	synth := newFakeSynth()
	synth.err = errors.New("tts down")
	arbiter := NewAudioArbiter(synth, &fakePlayer{}, nil, &fakeListener{}, nil)

	if err := arbiter.Speak(context.Background(), "q"); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
}

func TestAudioArbiterUsesPrefetchedAudio(t *testing.T) {
	t.Parallel()

	synth := newFakeSynth()
	player := &fakePlayer{}
	arbiter := NewAudioArbiter(synth, player, nil, &fakeListener{}, nil)

	arbiter.Prefetch(context.Background(), "next question")
	arbiter.Prefetch(context.Background(), "next question")
	if err := arbiter.Speak(context.Background(), "next question"); err != nil {
		t.Fatalf("speak failed: %v", err)
	}
	if calls := synth.callCount("next question"); calls != 1 {
		t.Fatalf("expected one synthesis, got %d", calls)
	}
	if played := player.snapshot(); len(played) != 1 {
		t.Fatalf("expected playback, got %v", played)
	}

	arbiter.Prefetch(context.Background(), "other")
	arbiter.Forget()
	_ = arbiter.Speak(context.Background(), "other")
	if calls := synth.callCount("other"); calls != 2 {
		t.Fatalf("expected forgotten audio to be synthesized again, got %d", calls)
	}
}

func TestAudioArbiterCancelSuppressesPendingPlayback(t *testing.T) {
	t.Parallel()

	synth := newFakeSynth()
	gate := synth.hold("q")
	player := &fakePlayer{}
	arbiter := NewAudioArbiter(synth, player, nil, &fakeListener{}, nil)

	done := make(chan error, 1)
	go func() { done <- arbiter.Speak(context.Background(), "q") }()
	waitFor(t, "synthesis", func() bool { return synth.callCount("q") == 1 })

	arbiter.Cancel()
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("cancelled speak should not fail: %v", err)
	}
	if played := player.snapshot(); len(played) != 0 {
		t.Fatalf("expected no playback, got %v", played)
	}
}

func TestAudioArbiterStartListeningFailureReleasesLock(t *testing.T) {
	t.Parallel()

	listener := &fakeListener{startErr: ErrMicPermissionDenied}
	arbiter := NewAudioArbiter(newFakeSynth(), &fakePlayer{}, nil, listener, nil)

	if err := arbiter.StartListening(context.Background()); !errors.Is(err, ErrMicPermissionDenied) {
		t.Fatalf("expected ErrMicPermissionDenied, got %v", err)
	}
	if lock := arbiter.Lock(); lock != domain.AudioLockNone {
		t.Fatalf("expected lock released, got %s", lock)
	}
}

func TestAudioArbiterConcurrentSpeakersPlayExactlyOnce(t *testing.T) {
	t.Parallel()

	texts := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for round := 0; round < 25; round++ {
		synth := newFakeSynth()
		var gates []chan struct{}
		for _, text := range texts {
			gates = append(gates, synth.hold(text))
		}
		player := &fakePlayer{}
		arbiter := NewAudioArbiter(synth, player, nil, &fakeListener{}, nil)

		var wg sync.WaitGroup
		for _, text := range texts {
			wg.Add(1)
			go func(text string) {
				defer wg.Done()
				_ = arbiter.Speak(context.Background(), text)
			}(text)
		}
		waitFor(t, "all syntheses", func() bool {
			total := 0
			for _, text := range texts {
				total += synth.callCount(text)
			}
			return total == len(texts)
		})
		for _, gate := range gates {
			close(gate)
		}
		wg.Wait()

		if played := player.snapshot(); len(played) != 1 {
			t.Fatalf("round %d: expected exactly the latest speak to play, got %v", round, played)
		}
		if lock := arbiter.Lock(); lock != domain.AudioLockNone {
			t.Fatalf("round %d: expected lock released, got %s", round, lock)
		}
	}
}

func TestAudioArbiterCancelledSpeakLeavesCurrentPlayback(t *testing.T) {
	t.Parallel()

	player := &fakePlayer{block: true, started: make(chan string, 1)}
	synth := newFakeSynth()
	arbiter := NewAudioArbiter(synth, player, nil, &fakeListener{}, nil)

	done := make(chan error, 1)
	go func() { done <- arbiter.Speak(context.Background(), "current") }()
	<-player.started

	stale, cancel := context.WithCancel(context.Background())
	cancel()
	if err := arbiter.Speak(stale, "stale"); err != nil {
		t.Fatalf("cancelled speak should be a no-op, got %v", err)
	}
	if calls := synth.callCount("stale"); calls != 0 {
		t.Fatalf("cancelled speak must not synthesize, got %d", calls)
	}
	if lock := arbiter.Lock(); lock != domain.AudioLockSpeaking {
		t.Fatalf("current playback was preempted: lock %s", lock)
	}

	arbiter.Cancel()
	if err := <-done; err != nil {
		t.Fatalf("cancelled playback should not fail: %v", err)
	}
}
