package video

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"interviewcoach/internal/ports"
)

func jpeg(payload string) []byte {
	out := append([]byte{}, jpegStart...)
	out = append(out, payload...)
	return append(out, jpegEnd...)
}

func TestSplitFramesAcrossChunkBoundaries(t *testing.T) {
	t.Parallel()

	stream := append(append([]byte("junk"), jpeg("one")...), jpeg("two")...)
	reader := &chunkReader{data: stream, size: 3}

	var frames [][]byte
	splitFrames(reader, func(frame []byte) { frames = append(frames, frame) })

	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], jpeg("one")) || !bytes.Equal(frames[1], jpeg("two")) {
		t.Fatalf("unexpected frames: %q", frames)
	}
}

func TestSplitFramesDropsIncompleteTail(t *testing.T) {
	t.Parallel()

	stream := append(jpeg("whole"), jpegStart...)
	stream = append(stream, "partial"...)

	var frames [][]byte
	splitFrames(bytes.NewReader(stream), func(frame []byte) { frames = append(frames, frame) })
	if len(frames) != 1 {
		t.Fatalf("expected 1 complete frame, got %d", len(frames))
	}
}

func TestFFMPEGCameraPublishesLatestFrame(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "camera.sh", "#!/usr/bin/env bash\nprintf '\\xff\\xd8abc\\xff\\xd9'\nsleep 2\n")
	session, err := NewFFMPEGCamera(script).Start(context.Background(), ports.VideoConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer session.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if frame, ok := session.Latest(); ok {
			if !bytes.Equal(frame.Data, jpeg("abc")) {
				t.Fatalf("unexpected frame: %q", frame.Data)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for frame")
}

func TestFFMPEGCameraPermissionDenied(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "denied.sh", "#!/usr/bin/env bash\necho '/dev/video0: Permission denied' 1>&2\nexit 1\n")
	_, err := NewFFMPEGCamera(script).Start(context.Background(), ports.VideoConfig{})
	if !errors.Is(err, ports.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestCameraArgsDefaults(t *testing.T) {
	t.Parallel()

	args := cameraArgs(ports.VideoConfig{})
	for _, want := range []string{"v4l2", "/dev/video0", "640x480", "15", "image2pipe"} {
		if !slices.Contains(args, want) {
			t.Fatalf("expected %q in args %v", want, args)
		}
	}
}

type chunkReader struct {
	data []byte
	size int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := min(r.size, len(p), len(r.data))
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
