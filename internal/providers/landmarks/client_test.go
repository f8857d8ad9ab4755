package landmarks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"interviewcoach/internal/ports"
)

func TestClientDetectMapsFirstFace(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" || r.Header.Get("Content-Type") != "image/jpeg" {
			t.Errorf("unexpected request: %s %s", r.URL.Path, r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "jpeg" {
			t.Errorf("unexpected body: %q", body)
		}
		_, _ = w.Write([]byte(`{"faces":[{"keypoints":[{"x":0.5,"y":0.4},{"x":0.45,"y":0.35}],"blendshapes":{"eyeLookInLeft":0.2,"eyeLookOutLeft":0.1,"eyeLookUpLeft":0.3,"eyeLookUpRight":0.5,"eyeLookDownLeft":0.05}}]}`))
	}))
	defer server.Close()

	obs, err := NewClient(server.URL+"/", 0).Detect(context.Background(), ports.Frame{Timestamp: 3 * time.Second, Data: []byte("jpeg")})
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if !obs.FaceDetected() || len(obs.Keypoints) != 2 || obs.Keypoints[0].X != 0.5 {
		t.Fatalf("unexpected keypoints: %+v", obs.Keypoints)
	}
	if obs.Timestamp != 3*time.Second {
		t.Fatalf("unexpected timestamp: %v", obs.Timestamp)
	}
	if obs.Gaze.Left != 0.2 || obs.Gaze.Right != 0.1 || obs.Gaze.Up != 0.5 || obs.Gaze.Down != 0.05 {
		t.Fatalf("unexpected gaze: %+v", obs.Gaze)
	}
}

func TestClientDetectNoFace(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"faces":[]}`))
	}))
	defer server.Close()

	obs, err := NewClient(server.URL, time.Second).Detect(context.Background(), ports.Frame{Data: []byte("x")})
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if obs.FaceDetected() {
		t.Fatalf("expected no face, got %+v", obs)
	}
}

func TestClientDetectErrors(t *testing.T) {
	t.Parallel()

	unavailable := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer unavailable.Close()
	if _, err := NewClient(unavailable.URL, time.Second).Detect(context.Background(), ports.Frame{}); err == nil {
		t.Fatalf("expected status error")
	}

	garbled := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{"))
	}))
	defer garbled.Close()
	if _, err := NewClient(garbled.URL, time.Second).Detect(context.Background(), ports.Frame{}); err == nil {
		t.Fatalf("expected decode error")
	}
}
