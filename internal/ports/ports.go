package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"interviewcoach/internal/domain"
)

// Capture adapters classify start failures with these sentinels.
var (
	ErrPermissionDenied = errors.New("device permission denied")
	ErrDeviceBusy       = errors.New("device busy or not yet available")
)

// VideoConfig describes how the camera should be captured.
type VideoConfig struct {
	InputFormat string
	InputDevice string
	Width       int
	Height      int
	FrameRate   int
}

// Frame is one encoded video frame stamped with the capture clock.
type Frame struct {
	Timestamp time.Duration
	Data      []byte
}

// VideoSession is a live camera capture. Latest returns the most recent
// complete frame, which may be the same frame on consecutive calls.
type VideoSession interface {
	Latest() (Frame, bool)
	Stop() error
}

// CameraCapture creates camera capture sessions.
type CameraCapture interface {
	Start(ctx context.Context, cfg VideoConfig) (VideoSession, error)
}

// LandmarkDetector turns one frame into face landmarks and gaze intensities.
type LandmarkDetector interface {
	Detect(ctx context.Context, frame Frame) (domain.LandmarkObservation, error)
}

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session. Events is closed
// once the session ends and is never reopened.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// TranscriptNormalizer rewrites finalized transcript text deterministically.
type TranscriptNormalizer interface {
	Apply(text string) (string, error)
}

// Audio is synthesized PCM ready for playback.
type Audio struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// SpeechSynthesizer converts question text to playable audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
}

// AudioPlayer plays audio and blocks until playback ends or ctx is done.
type AudioPlayer interface {
	Play(ctx context.Context, audio Audio) error
}

// LocalSpeaker is the best-effort host speech fallback.
type LocalSpeaker interface {
	Speak(ctx context.Context, text string) error
}

// QuestionRequest is the input to question generation.
type QuestionRequest struct {
	ResumeContext string `json:"resumeContext"`
	Role          string `json:"role"`
	Difficulty    string `json:"difficulty"`
	Count         int    `json:"count"`
	Mode          string `json:"mode"`
	Company       string `json:"company,omitempty"`
}

// QuestionSource generates the ordered interview questions.
type QuestionSource interface {
	Generate(ctx context.Context, req QuestionRequest) ([]domain.Question, error)
}

// ReportRequest is the input to report generation.
type ReportRequest struct {
	Answers []domain.AnswerRecord  `json:"answers"`
	Final   domain.BehavioralState `json:"final"`
	Role    string                 `json:"role"`
}

// ReportGenerator produces the performance report after the session.
type ReportGenerator interface {
	Generate(ctx context.Context, req ReportRequest) (domain.Report, error)
}

// SessionArtifact is the durable record written before the report call.
type SessionArtifact struct {
	SessionID string                 `json:"sessionId"`
	Role      string                 `json:"role"`
	Mode      string                 `json:"mode"`
	StartedAt time.Time              `json:"startedAt"`
	EndedAt   time.Time              `json:"endedAt"`
	Questions []domain.Question      `json:"questions"`
	Answers   []domain.AnswerRecord  `json:"answers"`
	Final     domain.BehavioralState `json:"final"`
}

// ArtifactWriter persists the session artifact and returns its location.
type ArtifactWriter interface {
	Save(ctx context.Context, artifact SessionArtifact) (string, error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	QuestionStarted(index int, question domain.Question)
	FeedbackChanged(feedback domain.Feedback, scores domain.BehavioralState)
	TranscriptUpdated(text string)
	AnswerRecorded(record domain.AnswerRecord)
	ArtifactSaved(path string)
	ReportReady(report domain.Report)
	SessionError(code domain.ErrorCode, detail string)
}
