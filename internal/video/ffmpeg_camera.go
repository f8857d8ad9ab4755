// Package video captures webcam frames as a stream of JPEG images.
package video

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"interviewcoach/internal/device"
	"interviewcoach/internal/ports"
)

var (
	jpegStart = []byte{0xFF, 0xD8}
	jpegEnd   = []byte{0xFF, 0xD9}
)

const maxPendingBytes = 8 << 20

// FFMPEGCamera captures the webcam through ffmpeg as an MJPEG pipe.
type FFMPEGCamera struct {
	command string
	settle  time.Duration
	now     func() time.Time
}

func NewFFMPEGCamera(command string) *FFMPEGCamera {
	return &FFMPEGCamera{command: command, now: time.Now}
}

func (c *FFMPEGCamera) Start(ctx context.Context, cfg ports.VideoConfig) (ports.VideoSession, error) {
	proc, err := device.Start(ctx, c.command, cameraArgs(cfg), c.settle)
	if err != nil {
		return nil, err
	}

	session := &cameraSession{
		proc:    proc,
		started: c.now(),
		now:     c.now,
		done:    make(chan struct{}),
	}
	go session.readLoop(proc)
	return session, nil
}

func cameraArgs(cfg ports.VideoConfig) []string {
	if cfg.InputFormat == "" {
		cfg.InputFormat = "v4l2"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "/dev/video0"
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 640, 480
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 15
	}

	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-framerate", strconv.Itoa(cfg.FrameRate),
		"-video_size", strconv.Itoa(cfg.Width) + "x" + strconv.Itoa(cfg.Height),
		"-i", cfg.InputDevice,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"-",
	}
}

type cameraSession struct {
	proc    *device.Process
	started time.Time
	now     func() time.Time

	mu     sync.Mutex
	latest ports.Frame
	ok     bool

	done chan struct{}
}

func (s *cameraSession) Latest() (ports.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.ok
}

func (s *cameraSession) Stop() error {
	err := s.proc.Stop()
	<-s.done
	return err
}

func (s *cameraSession) readLoop(r io.Reader) {
	defer close(s.done)
	splitFrames(r, func(data []byte) {
		frame := ports.Frame{Timestamp: s.now().Sub(s.started), Data: data}
		s.mu.Lock()
		s.latest = frame
		s.ok = true
		s.mu.Unlock()
	})
}

// splitFrames cuts a concatenated JPEG stream at SOI/EOI markers and calls
// emit with a private copy of each complete image.
func splitFrames(r io.Reader, emit func([]byte)) {
	var pending []byte
	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			pending = drainFrames(pending, emit)
			if len(pending) > maxPendingBytes {
				pending = pending[:0]
			}
		}
		if err != nil {
			return
		}
	}
}

func drainFrames(pending []byte, emit func([]byte)) []byte {
	for {
		start := bytes.Index(pending, jpegStart)
		if start < 0 {
			// Keep a trailing 0xFF in case it begins the next marker.
			if len(pending) > 0 && pending[len(pending)-1] == 0xFF {
				return append(pending[:0], 0xFF)
			}
			return pending[:0]
		}
		end := bytes.Index(pending[start+len(jpegStart):], jpegEnd)
		if end < 0 {
			if start > 0 {
				pending = append(pending[:0], pending[start:]...)
			}
			return pending
		}
		stop := start + len(jpegStart) + end + len(jpegEnd)
		frame := make([]byte, stop-start)
		copy(frame, pending[start:stop])
		emit(frame)
		pending = append(pending[:0], pending[stop:]...)
	}
}
