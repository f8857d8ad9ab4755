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
	ErrCameraPermissionDenied = errors.New("camera permission denied")
	ErrCameraUnavailable      = errors.New("camera unavailable")
	ErrSourceClosed           = errors.New("landmark source is closed")
)

// LandmarkSourceConfig controls camera acquisition.
type LandmarkSourceConfig struct {
	Video   ports.VideoConfig
	Retries int
	Backoff time.Duration
}

// FrameLandmarkSource turns the live camera into a sequence of landmark
// observations, at most one per distinct frame.
type FrameLandmarkSource struct {
	camera   ports.CameraCapture
	detector ports.LandmarkDetector
	cfg      LandmarkSourceConfig
	log      *logrus.Entry

	mu      sync.Mutex
	session ports.VideoSession
	lastTS  time.Duration
	seen    bool
}

func NewFrameLandmarkSource(camera ports.CameraCapture, detector ports.LandmarkDetector, cfg LandmarkSourceConfig, log *logrus.Entry) *FrameLandmarkSource {
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1500 * time.Millisecond
	}
	return &FrameLandmarkSource{camera: camera, detector: detector, cfg: cfg, log: logging.OrDiscard(log)}
}

// Open acquires the camera, stopping any stream it already holds. ctx bounds
// the acquisition only; the stream lives until Close.
func (s *FrameLandmarkSource) Open(ctx context.Context) error {
	s.Close()

	var lastErr error
	attempts := s.cfg.Retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(s.cfg.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		session, err := s.camera.Start(context.WithoutCancel(ctx), s.cfg.Video)
		if err == nil {
			s.mu.Lock()
			s.session = session
			s.seen = false
			s.mu.Unlock()
			s.log.WithField("attempt", attempt).Info("camera opened")
			return nil
		}
		if errors.Is(err, ports.ErrPermissionDenied) {
			return fmt.Errorf("%w: %v", ErrCameraPermissionDenied, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		s.log.WithError(err).WithField("attempt", attempt).Warn("camera open failed")
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrCameraUnavailable, attempts, lastErr)
}

// Poll runs detection on the newest frame. ok is false when the video clock
// has not advanced since the previous observation.
func (s *FrameLandmarkSource) Poll(ctx context.Context) (domain.LandmarkObservation, bool, error) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil {
		return domain.LandmarkObservation{}, false, ErrSourceClosed
	}

	frame, ok := session.Latest()
	if !ok {
		return domain.LandmarkObservation{}, false, nil
	}

	s.mu.Lock()
	if s.session != session || (s.seen && frame.Timestamp <= s.lastTS) {
		s.mu.Unlock()
		return domain.LandmarkObservation{}, false, nil
	}
	s.lastTS = frame.Timestamp
	s.seen = true
	s.mu.Unlock()

	obs, err := s.detector.Detect(ctx, frame)
	if err != nil {
		return domain.LandmarkObservation{}, false, err
	}
	obs.Timestamp = frame.Timestamp
	return obs, true, nil
}

// Close releases the camera. It is safe to call repeatedly.
func (s *FrameLandmarkSource) Close() {
	s.mu.Lock()
	session := s.session
	s.session = nil
	s.mu.Unlock()

	if session != nil {
		if err := session.Stop(); err != nil {
			s.log.WithError(err).Warn("camera stop failed")
		}
	}
}
