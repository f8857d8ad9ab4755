package domain

import "time"

// SessionState models the interview session lifecycle.
type SessionState string

const (
	SessionStateInitializing        SessionState = "initializing"
	SessionStateAwaitingPermissions SessionState = "awaiting_permissions"
	SessionStateActive              SessionState = "active"
	SessionStateAdvancing           SessionState = "advancing"
	SessionStateFinalizing          SessionState = "finalizing"
	SessionStateTerminated          SessionState = "terminated"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonStarting               SessionStateReason = "starting"
	SessionReasonRequestingPermissions  SessionStateReason = "requesting_permissions"
	SessionReasonQuestionStarted        SessionStateReason = "question_started"
	SessionReasonVideoDegraded          SessionStateReason = "video_degraded"
	SessionReasonVideoRestored          SessionStateReason = "video_restored"
	SessionReasonAdvancing              SessionStateReason = "advancing"
	SessionReasonGeneratingReport       SessionStateReason = "generating_report"
	SessionReasonReportReady            SessionStateReason = "report_ready"
	SessionReasonReportFailed           SessionStateReason = "report_failed"
	SessionReasonCameraPermissionDenied SessionStateReason = "camera_permission_denied"
	SessionReasonQuestionsUnavailable   SessionStateReason = "questions_unavailable"
	SessionReasonAborted                SessionStateReason = "aborted"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup          ErrorCode = "startup"
	ErrorCodeCameraPermission ErrorCode = "camera_permission"
	ErrorCodeCameraDevice     ErrorCode = "camera_device"
	ErrorCodeMicPermission    ErrorCode = "mic_permission"
	ErrorCodeAudioStream      ErrorCode = "audio_stream"
	ErrorCodeTranscription    ErrorCode = "transcription"
	ErrorCodeQuestions        ErrorCode = "questions"
	ErrorCodeArtifact         ErrorCode = "artifact"
	ErrorCodeReport           ErrorCode = "report"
	ErrorCodeClipboard        ErrorCode = "clipboard"
)

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental transcription output from a provider.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}

// Point is a normalized image coordinate; both axes are in [0,1].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PrimaryKeypoint indexes the reference point (nose tip) used for posture.
const PrimaryKeypoint = 0

// Gaze holds directional eye action-unit intensities in [0,1].
type Gaze struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
	Up    float64 `json:"up"`
	Down  float64 `json:"down"`
}

// LandmarkObservation is one distinct video frame's worth of face signals.
// An empty Keypoints slice means no face was detected.
type LandmarkObservation struct {
	Timestamp time.Duration `json:"timestamp"`
	Keypoints []Point       `json:"keypoints"`
	Gaze      Gaze          `json:"gaze"`
}

// FaceDetected reports whether the observation carries face landmarks.
func (o LandmarkObservation) FaceDetected() bool {
	return len(o.Keypoints) > PrimaryKeypoint
}

// BehavioralState is a snapshot of the two decaying quality scores.
type BehavioralState struct {
	Posture    float64 `json:"postureScore"`
	EyeContact float64 `json:"eyeContactScore"`
}

// Feedback is the advisory produced for the most recent frame.
type Feedback string

const (
	FeedbackNone               Feedback = ""
	FeedbackCenterYourself     Feedback = "center_yourself"
	FeedbackMaintainEyeContact Feedback = "maintain_eye_contact"
	FeedbackFaceNotDetected    Feedback = "face_not_detected"
)

// Message returns the user-facing advisory text.
func (f Feedback) Message() string {
	switch f {
	case FeedbackCenterYourself:
		return "Center yourself in frame"
	case FeedbackMaintainEyeContact:
		return "Maintain eye contact"
	case FeedbackFaceNotDetected:
		return "Face not detected"
	default:
		return ""
	}
}

// Question is supplied by the question source before the session starts.
type Question struct {
	ID         int    `json:"id" yaml:"id"`
	Question   string `json:"question" yaml:"question"`
	Type       string `json:"type" yaml:"type"`
	Difficulty string `json:"difficulty" yaml:"difficulty"`
}

// AnswerRecord is captured once per question when the user advances.
type AnswerRecord struct {
	QuestionID int             `json:"questionId"`
	Question   string          `json:"question"`
	Answer     string          `json:"answer"`
	Timestamp  time.Time       `json:"timestamp"`
	Metrics    BehavioralState `json:"metrics"`
}

// AudioLock names the current owner of the audio hardware.
type AudioLock string

const (
	AudioLockNone      AudioLock = "none"
	AudioLockSpeaking  AudioLock = "speaking"
	AudioLockListening AudioLock = "listening"
)

// QuestionFeedback is the report's critique of one answer.
type QuestionFeedback struct {
	QuestionID int    `json:"questionId"`
	Feedback   string `json:"feedback"`
	Score      int    `json:"score"`
}

// Report is the structured performance report returned after finalizing.
type Report struct {
	OverallScore         int                `json:"overallScore"`
	TechnicalScore       int                `json:"technicalScore"`
	CommunicationScore   int                `json:"communicationScore"`
	BodyLanguageScore    int                `json:"bodyLanguageScore"`
	VocabularyLevel      string             `json:"vocabularyLevel"`
	EstimatedFillerWords int                `json:"estimatedFillerWords"`
	Strengths            []string           `json:"strengths"`
	Weaknesses           []string           `json:"weaknesses"`
	QuestionFeedback     []QuestionFeedback `json:"questionFeedback"`
	Summary              string             `json:"summary"`
	Role                 string             `json:"role,omitempty"`
}

// AdvanceResult is returned by each "next" action.
type AdvanceResult struct {
	Record       AnswerRecord `json:"record"`
	NextIndex    int          `json:"nextIndex"`
	Finished     bool         `json:"finished"`
	ArtifactPath string       `json:"artifactPath,omitempty"`
	Report       *Report      `json:"report,omitempty"`
	Warning      string       `json:"warning,omitempty"`
}

// Status summarizes the current runtime status.
type Status struct {
	State         SessionState       `json:"state"`
	Reason        SessionStateReason `json:"reason,omitempty"`
	Active        bool               `json:"active"`
	QuestionIndex int                `json:"questionIndex"`
	QuestionCount int                `json:"questionCount"`
	VideoDegraded bool               `json:"videoDegraded"`
	AudioLock     AudioLock          `json:"audioLock"`
	Scores        BehavioralState    `json:"scores"`
	Feedback      Feedback           `json:"feedback,omitempty"`
	Message       string             `json:"message,omitempty"`
}
