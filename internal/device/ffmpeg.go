// Package device runs ffmpeg capture subprocesses for the camera and the
// microphone and classifies their start failures.
package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"interviewcoach/internal/ports"
)

const (
	defaultSettle   = 250 * time.Millisecond
	interruptGrace  = 1200 * time.Millisecond
	defaultFFMPEG   = "ffmpeg"
	stderrTailBytes = 512
)

// Process is a running ffmpeg capture whose stdout carries the media.
type Process struct {
	stdout io.ReadCloser
	stderr *lockedBuffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

// Start launches command with args and waits briefly so that devices which
// refuse to open are reported as start errors rather than as empty reads.
func Start(ctx context.Context, command string, args []string, settle time.Duration) (*Process, error) {
	if command == "" {
		command = defaultFFMPEG
	}
	if settle <= 0 {
		settle = defaultSettle
	}

	cmd := exec.CommandContext(ctx, command, args...)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create %s stdout pipe: %w", command, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", command, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		detail := trimTail(stderr.String())
		if class := Classify(detail); class != nil {
			return nil, fmt.Errorf("%w: %s", class, detail)
		}
		if err != nil {
			return nil, fmt.Errorf("%s exited before capture started: %w: %s", command, err, detail)
		}
		return nil, fmt.Errorf("%s exited before capture started", command)
	case <-time.After(settle):
	}

	return &Process{
		stdout:  stdout,
		stderr:  stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

// Classify maps ffmpeg/OS device diagnostics onto the port sentinels.
func Classify(stderr string) error {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "operation not permitted"),
		strings.Contains(msg, "not authorized"):
		return ports.ErrPermissionDenied
	case strings.Contains(msg, "device or resource busy"),
		strings.Contains(msg, "no such file or directory"),
		strings.Contains(msg, "no such device"),
		strings.Contains(msg, "input/output error"):
		return ports.ErrDeviceBusy
	default:
		return nil
	}
}

func (p *Process) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

func (p *Process) Close() error {
	return p.Stop()
}

// Stop interrupts ffmpeg, escalating to kill after a grace period. It is
// safe to call more than once.
func (p *Process) Stop() error {
	p.stopOnce.Do(func() {
		if p.process != nil {
			_ = p.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-p.waitErr:
			if ok {
				p.stopErr = normalizeStopErr(err)
			}
		case <-time.After(interruptGrace):
			if p.process != nil {
				_ = p.process.Kill()
			}
			err, ok := <-p.waitErr
			if ok {
				p.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := p.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if p.stopErr == nil {
				p.stopErr = closeErr
			}
		}

		if p.stopErr != nil {
			if tail := trimTail(p.stderr.String()); tail != "" {
				p.stopErr = fmt.Errorf("%w: %s", p.stopErr, tail)
			}
		}
	})

	return p.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimTail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTailBytes {
		s = s[len(s)-stderrTailBytes:]
	}
	return s
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
