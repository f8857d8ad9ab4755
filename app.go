package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"interviewcoach/internal/bootstrap"
	"interviewcoach/internal/config"
	"interviewcoach/internal/domain"
	"interviewcoach/internal/logging"
	"interviewcoach/internal/ports"
	"interviewcoach/internal/usecase"
)

const (
	eventSession    = "coach:session"
	eventQuestion   = "coach:question"
	eventFeedback   = "coach:feedback"
	eventTranscript = "coach:transcript"
	eventAnswer     = "coach:answer"
	eventArtifact   = "coach:artifact"
	eventReport     = "coach:report"
	eventError      = "coach:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	controller   *usecase.SessionController
	cfg          config.Config
	log          *logrus.Entry
	questionFrom string
	localSpeaker string
	bootErr      error
}

func NewApp() *App {
	return &App{log: logging.Discard()}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(ctx, a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller
	a.log = logging.Component(services.Logger, logging.CategoryApp)
	a.questionFrom = services.QuestionFrom
	a.localSpeaker = services.LocalSpeaker
}

func (a *App) shutdown(_ context.Context) {
	if a.controller == nil {
		return
	}
	if err := a.controller.Abort(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
		a.log.WithError(err).Warn("abort on shutdown failed")
	}
}

// StartSession fetches questions, opens the camera and enters the first
// question. It returns once the session is active or has terminated.
func (a *App) StartSession(req ports.QuestionRequest) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	req = a.normalizeRequest(req)
	if err := a.controller.Begin(a.ctx, req); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// RetryVideo reopens the camera while an audio-only session is running.
func (a *App) RetryVideo() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.RetryVideo(a.ctx); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// RetryCamera retries after the camera permission was denied.
func (a *App) RetryCamera() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.RetryCamera(a.ctx); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// StartAnswer opens the microphone.
func (a *App) StartAnswer() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.StartAnswer(a.ctx)
}

// StopAnswer closes the microphone.
func (a *App) StopAnswer() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.StopAnswer(a.ctx)
}

// NextQuestion records the current answer and advances.
func (a *App) NextQuestion() (domain.AdvanceResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.AdvanceResult{}, err
	}
	return a.controller.Next(a.ctx)
}

// AbortSession ends the interview without a report.
func (a *App) AbortSession() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.controller.Abort(); err != nil {
		if errors.Is(err, usecase.ErrNoActiveSession) {
			return nil
		}
		return err
	}
	return nil
}

// CopyText puts text, usually the report summary, on the clipboard.
func (a *App) CopyText(text string) error {
	if a.ctx == nil {
		return fmt.Errorf("application is not initialized")
	}
	if err := runtime.ClipboardSetText(a.ctx, text); err != nil {
		a.SessionError(domain.ErrorCodeClipboard, err.Error())
		return err
	}
	return nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		status := domain.Status{
			State:     domain.SessionStateTerminated,
			AudioLock: domain.AudioLockNone,
			Scores:    domain.BehavioralState{Posture: 100, EyeContact: 100},
		}
		if a.bootErr != nil {
			status.Message = a.bootErr.Error()
		}
		return status
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"transcription":   "Deepgram " + a.cfg.Deepgram.Model,
		"speech":          a.cfg.Deepgram.SpeakModel,
		"localSpeech":     a.localSpeaker,
		"questions":       a.questionFrom,
		"questionCount":   strconv.Itoa(a.cfg.Questions.Count),
		"camera":          a.cfg.Video.InputDevice,
		"landmarks":       a.cfg.Landmarks.URL,
		"audioInput":      a.cfg.Audio.InputDevice,
		"glossaryFile":    a.cfg.Glossary.Path,
		"artifactDir":     a.cfg.Session.ArtifactDir,
		"configFile":      a.cfg.File,
		"cameraRetries":   strconv.Itoa(a.cfg.Video.Retries),
		"reportTimeoutMs": strconv.FormatInt(a.cfg.Session.ReportTimeout.Milliseconds(), 10),
	}
}

func (a *App) normalizeRequest(req ports.QuestionRequest) ports.QuestionRequest {
	req.Role = strings.TrimSpace(req.Role)
	req.Company = strings.TrimSpace(req.Company)
	if req.Count <= 0 {
		req.Count = a.cfg.Questions.Count
	}
	return req
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	a.emit(eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

func (a *App) QuestionStarted(index int, question domain.Question) {
	a.emit(eventQuestion, map[string]any{"index": index, "question": question})
}

// FeedbackChanged emits the live scores and advisory for the latest frame.
func (a *App) FeedbackChanged(feedback domain.Feedback, scores domain.BehavioralState) {
	a.emit(eventFeedback, map[string]any{
		"feedback": string(feedback),
		"message":  feedback.Message(),
		"scores":   scores,
	})
}

func (a *App) TranscriptUpdated(text string) {
	a.emit(eventTranscript, map[string]string{"text": text})
}

func (a *App) AnswerRecorded(record domain.AnswerRecord) {
	a.emit(eventAnswer, record)
}

func (a *App) ArtifactSaved(path string) {
	a.emit(eventArtifact, map[string]string{"path": path})
}

func (a *App) ReportReady(report domain.Report) {
	a.emit(eventReport, report)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.emit(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func (a *App) emit(name string, payload any) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, name, payload)
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonStarting:
		return "Preparing interview"
	case domain.SessionReasonRequestingPermissions:
		return "Requesting camera access and generating questions..."
	case domain.SessionReasonQuestionStarted:
		return "Question ready"
	case domain.SessionReasonVideoDegraded:
		return "Camera unavailable; continuing audio-only"
	case domain.SessionReasonVideoRestored:
		return "Camera restored"
	case domain.SessionReasonAdvancing:
		return "Saving answer"
	case domain.SessionReasonGeneratingReport:
		return "Generating performance report..."
	case domain.SessionReasonReportReady:
		return "Report ready"
	case domain.SessionReasonReportFailed:
		return "Interview saved; report unavailable"
	case domain.SessionReasonCameraPermissionDenied:
		return "Camera access denied"
	case domain.SessionReasonQuestionsUnavailable:
		return "Could not generate questions"
	case domain.SessionReasonAborted:
		return "Interview ended"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCameraPermission:
		return "Camera permission denied"
	case domain.ErrorCodeCameraDevice:
		return "Camera unavailable"
	case domain.ErrorCodeMicPermission:
		return "Microphone permission denied"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeQuestions:
		return "Question generation failed"
	case domain.ErrorCodeArtifact:
		return "Could not save the interview"
	case domain.ErrorCodeReport:
		return "Report generation failed"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
