package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"interviewcoach/internal/domain"
	"interviewcoach/internal/ports"
)

type fakeCamera struct {
	mu       sync.Mutex
	errs     []error
	sessions []*fakeVideoSession
	calls    int
}

func (f *fakeCamera) Start(_ context.Context, _ ports.VideoConfig) (ports.VideoSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(f.sessions) == 0 {
		return nil, errors.New("no video session configured")
	}
	session := f.sessions[0]
	f.sessions = f.sessions[1:]
	return session, nil
}

func (f *fakeCamera) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeVideoSession struct {
	mu        sync.Mutex
	frame     ports.Frame
	hasFrame  bool
	stopCalls int
}

func (f *fakeVideoSession) setFrame(ts time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frame = ports.Frame{Timestamp: ts, Data: []byte{0xff, 0xd8, 0xff, 0xd9}}
	f.hasFrame = true
}

func (f *fakeVideoSession) Latest() (ports.Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame, f.hasFrame
}

func (f *fakeVideoSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

func (f *fakeVideoSession) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeDetector struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeDetector) Detect(_ context.Context, _ ports.Frame) (domain.LandmarkObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return domain.LandmarkObservation{}, f.err
	}
	return domain.LandmarkObservation{Keypoints: []domain.Point{{X: 0.5, Y: 0.45}, {X: 0.5, Y: 0.7}}}, nil
}

func TestFrameLandmarkSourceDeduplicatesByTimestamp(t *testing.T) {
	t.Parallel()

	video := &fakeVideoSession{}
	detector := &fakeDetector{}
	source := NewFrameLandmarkSource(&fakeCamera{sessions: []*fakeVideoSession{video}}, detector, LandmarkSourceConfig{}, nil)
	if err := source.Open(context.Background()); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer source.Close()

	if _, ok, err := source.Poll(context.Background()); ok || err != nil {
		t.Fatalf("expected no observation before the first frame, ok=%v err=%v", ok, err)
	}

	video.setFrame(40 * time.Millisecond)
	obs, ok, err := source.Poll(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected observation, ok=%v err=%v", ok, err)
	}
	if obs.Timestamp != 40*time.Millisecond {
		t.Fatalf("unexpected timestamp: %v", obs.Timestamp)
	}

	if _, ok, _ := source.Poll(context.Background()); ok {
		t.Fatalf("expected same frame to be skipped")
	}
	if detector.calls != 1 {
		t.Fatalf("expected one detection, got %d", detector.calls)
	}

	video.setFrame(80 * time.Millisecond)
	if _, ok, _ := source.Poll(context.Background()); !ok {
		t.Fatalf("expected observation for advanced clock")
	}
}

func TestFrameLandmarkSourcePermissionDeniedDoesNotRetry(t *testing.T) {
	t.Parallel()

	camera := &fakeCamera{errs: []error{fmt.Errorf("v4l2: %w", ports.ErrPermissionDenied)}}
	source := NewFrameLandmarkSource(camera, &fakeDetector{}, LandmarkSourceConfig{Retries: 3, Backoff: time.Millisecond}, nil)

	err := source.Open(context.Background())
	if !errors.Is(err, ErrCameraPermissionDenied) {
		t.Fatalf("expected ErrCameraPermissionDenied, got %v", err)
	}
	if calls := camera.callCount(); calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestFrameLandmarkSourceRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	busy := fmt.Errorf("v4l2: %w", ports.ErrDeviceBusy)
	video := &fakeVideoSession{}
	camera := &fakeCamera{errs: []error{busy, busy}, sessions: []*fakeVideoSession{video}}
	source := NewFrameLandmarkSource(camera, &fakeDetector{}, LandmarkSourceConfig{Retries: 3, Backoff: time.Millisecond}, nil)

	if err := source.Open(context.Background()); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if calls := camera.callCount(); calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	source.Close()
}

func TestFrameLandmarkSourceGivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	busy := fmt.Errorf("v4l2: %w", ports.ErrDeviceBusy)
	camera := &fakeCamera{errs: []error{busy, busy, busy}}
	source := NewFrameLandmarkSource(camera, &fakeDetector{}, LandmarkSourceConfig{Retries: 2, Backoff: time.Millisecond}, nil)

	err := source.Open(context.Background())
	if !errors.Is(err, ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable, got %v", err)
	}
	if calls := camera.callCount(); calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestFrameLandmarkSourceReopenStopsPreviousStream(t *testing.T) {
	t.Parallel()

	first := &fakeVideoSession{}
	second := &fakeVideoSession{}
	source := NewFrameLandmarkSource(&fakeCamera{sessions: []*fakeVideoSession{first, second}}, &fakeDetector{}, LandmarkSourceConfig{}, nil)

	if err := source.Open(context.Background()); err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if err := source.Open(context.Background()); err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	if first.stops() != 1 {
		t.Fatalf("expected first stream stopped, got %d", first.stops())
	}

	source.Close()
	source.Close()
	if second.stops() != 1 {
		t.Fatalf("expected close to be idempotent, got %d stops", second.stops())
	}
	if _, _, err := source.Poll(context.Background()); !errors.Is(err, ErrSourceClosed) {
		t.Fatalf("expected ErrSourceClosed, got %v", err)
	}
}
