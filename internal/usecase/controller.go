package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"interviewcoach/internal/domain"
	"interviewcoach/internal/logging"
	"interviewcoach/internal/ports"
	"interviewcoach/internal/scoring"
)

var (
	ErrNoActiveSession   = errors.New("no active interview session")
	ErrSessionInProgress = errors.New("an interview session is already in progress")
	ErrNotRetryable      = errors.New("session cannot be retried")
	ErrVideoNotDegraded  = errors.New("video is not degraded")
	ErrNoQuestions       = errors.New("no interview questions available")
)

// Config controls session pacing and collaborator timeouts.
type Config struct {
	FrameInterval   time.Duration
	QuestionTimeout time.Duration
	ReportTimeout   time.Duration
	Scoring         scoring.Config
}

type landmarkSource interface {
	Open(ctx context.Context) error
	Poll(ctx context.Context) (domain.LandmarkObservation, bool, error)
	Close()
}

type transcript interface {
	CurrentText() string
	Reset() error
	Abort()
}

type audioArbiter interface {
	Speak(ctx context.Context, text string) error
	Prefetch(ctx context.Context, text string)
	Forget()
	StartListening(ctx context.Context) error
	StopListening(ctx context.Context)
	Cancel()
	Lock() domain.AudioLock
}

// SessionController drives one interview at a time through its states. The
// mutex guards state only; blocking work runs outside it.
type SessionController struct {
	source     landmarkSource
	transcript transcript
	arbiter    audioArbiter
	questions  ports.QuestionSource
	events     ports.EventSink
	finalizer  sessionFinalizer
	cfg        Config
	newID      func() string
	now        func() time.Time
	log        *logrus.Entry

	mu      sync.Mutex
	state   domain.SessionState
	reason  domain.SessionStateReason
	current *interview
}

type interview struct {
	id        string
	request   ports.QuestionRequest
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	questions     []domain.Question
	index         int
	answers       []domain.AnswerRecord
	videoDegraded bool
	videoRetrying bool

	// speakCancel ends the current question's playback, including a Speak
	// that has not been scheduled yet.
	speakCancel context.CancelFunc

	loopCancel context.CancelFunc
	loopDone   chan struct{}

	scoreMu  sync.Mutex
	scorer   *scoring.Scorer
	feedback domain.Feedback
}

func (iv *interview) scores() (domain.BehavioralState, domain.Feedback) {
	iv.scoreMu.Lock()
	defer iv.scoreMu.Unlock()
	return iv.scorer.State(), iv.feedback
}

func NewSessionController(
	source landmarkSource,
	transcript transcript,
	arbiter audioArbiter,
	questions ports.QuestionSource,
	reports ports.ReportGenerator,
	artifacts ports.ArtifactWriter,
	events ports.EventSink,
	newID func() string,
	cfg Config,
	log *logrus.Entry,
) *SessionController {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 100 * time.Millisecond
	}
	if cfg.QuestionTimeout <= 0 {
		cfg.QuestionTimeout = 30 * time.Second
	}
	if cfg.ReportTimeout <= 0 {
		cfg.ReportTimeout = 60 * time.Second
	}
	cfg.Scoring = cfg.Scoring.Normalize()
	log = logging.OrDiscard(log)

	return &SessionController{
		source:     source,
		transcript: transcript,
		arbiter:    arbiter,
		questions:  questions,
		events:     events,
		finalizer:  newSessionFinalizer(artifacts, reports, events, cfg.ReportTimeout, log),
		cfg:        cfg,
		newID:      newID,
		now:        time.Now,
		log:        log,
		state:      domain.SessionStateTerminated,
	}
}

// Begin starts an interview and blocks until it is Active or Terminated.
func (c *SessionController) Begin(ctx context.Context, req ports.QuestionRequest) error {
	c.mu.Lock()
	if c.current != nil && c.state != domain.SessionStateTerminated {
		c.mu.Unlock()
		return ErrSessionInProgress
	}
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	iv := &interview{
		id:        c.newID(),
		request:   req,
		startedAt: c.now(),
		ctx:       sessionCtx,
		cancel:    cancel,
		scorer:    scoring.NewScorer(c.cfg.Scoring),
	}
	c.current = iv
	c.state = domain.SessionStateInitializing
	c.reason = domain.SessionReasonStarting
	c.mu.Unlock()

	c.events.SessionStateChanged(domain.SessionStateInitializing, domain.SessionReasonStarting)
	c.log.WithFields(logrus.Fields{"session": iv.id, "role": req.Role, "mode": req.Mode}).Info("interview starting")

	if !c.transition(iv, domain.SessionStateInitializing, domain.SessionStateAwaitingPermissions, domain.SessionReasonRequestingPermissions) {
		return ErrNoActiveSession
	}
	return c.acquire(iv)
}

// RetryCamera re-requests the camera after a permission denial. Questions
// already fetched are kept.
func (c *SessionController) RetryCamera(ctx context.Context) error {
	c.mu.Lock()
	iv := c.current
	if iv == nil || c.state != domain.SessionStateTerminated || c.reason != domain.SessionReasonCameraPermissionDenied {
		c.mu.Unlock()
		return ErrNotRetryable
	}
	iv.ctx, iv.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.state = domain.SessionStateAwaitingPermissions
	c.reason = domain.SessionReasonRequestingPermissions
	c.mu.Unlock()

	c.events.SessionStateChanged(domain.SessionStateAwaitingPermissions, domain.SessionReasonRequestingPermissions)
	c.log.WithField("session", iv.id).Info("retrying camera")
	return c.acquire(iv)
}

// RetryVideo reopens the camera after a device failure left the session
// audio-only. The session stays Active whatever the outcome.
func (c *SessionController) RetryVideo(ctx context.Context) error {
	c.mu.Lock()
	iv := c.current
	if iv == nil || c.state != domain.SessionStateActive {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	if !iv.videoDegraded || iv.videoRetrying {
		c.mu.Unlock()
		return ErrVideoNotDegraded
	}
	iv.videoRetrying = true
	sessionCtx := iv.ctx
	c.mu.Unlock()

	c.log.WithField("session", iv.id).Info("retrying camera device")
	err := c.source.Open(sessionCtx)

	c.mu.Lock()
	iv.videoRetrying = false
	state := c.state
	live := c.current == iv && (state == domain.SessionStateActive || state == domain.SessionStateAdvancing)
	if err == nil && live {
		iv.videoDegraded = false
		c.startAnalysisLocked(iv)
	}
	c.mu.Unlock()

	switch {
	case !live:
		if err == nil {
			c.source.Close()
		}
		return ErrNoActiveSession
	case errors.Is(err, ErrCameraPermissionDenied):
		c.log.WithError(err).Warn("camera permission denied on retry")
		c.events.SessionError(domain.ErrorCodeCameraPermission, err.Error())
		return err
	case err != nil:
		c.log.WithError(err).Warn("camera still unavailable")
		c.events.SessionError(domain.ErrorCodeCameraDevice, err.Error())
		return err
	}
	c.log.WithField("session", iv.id).Info("camera restored")
	if state == domain.SessionStateActive {
		c.events.SessionStateChanged(domain.SessionStateActive, domain.SessionReasonVideoRestored)
	}
	return nil
}

// acquire opens the camera and fetches questions concurrently, then enters
// the first question.
func (c *SessionController) acquire(iv *interview) error {
	c.mu.Lock()
	needQuestions := len(iv.questions) == 0
	sessionCtx := iv.ctx
	c.mu.Unlock()

	var questions []domain.Question
	degraded := false

	g, gctx := errgroup.WithContext(sessionCtx)
	g.Go(func() error {
		err := c.source.Open(gctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrCameraPermissionDenied):
			return err
		case gctx.Err() != nil:
			return nil
		default:
			degraded = true
			c.log.WithError(err).Warn("camera unavailable; continuing audio-only")
			c.events.SessionError(domain.ErrorCodeCameraDevice, err.Error())
			return nil
		}
	})
	if needQuestions {
		g.Go(func() error {
			qctx, cancel := context.WithTimeout(gctx, c.cfg.QuestionTimeout)
			defer cancel()
			qs, err := c.questions.Generate(qctx, iv.request)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrNoQuestions, err)
			}
			if len(qs) == 0 {
				return ErrNoQuestions
			}
			questions = qs
			return nil
		})
	}
	err := g.Wait()

	if sessionCtx.Err() != nil {
		// Aborted while acquiring.
		c.source.Close()
		return ErrNoActiveSession
	}
	switch {
	case errors.Is(err, ErrCameraPermissionDenied):
		c.source.Close()
		c.mu.Lock()
		if needQuestions && len(questions) > 0 {
			iv.questions = questions
		}
		c.mu.Unlock()
		c.log.WithError(err).Warn("camera permission denied")
		c.events.SessionError(domain.ErrorCodeCameraPermission, err.Error())
		c.terminate(iv, domain.SessionReasonCameraPermissionDenied)
		return err
	case errors.Is(err, ErrNoQuestions):
		c.source.Close()
		c.log.WithError(err).Error("questions unavailable")
		c.events.SessionError(domain.ErrorCodeQuestions, err.Error())
		c.terminate(iv, domain.SessionReasonQuestionsUnavailable)
		return err
	case err != nil:
		c.source.Close()
		c.terminate(iv, domain.SessionReasonAborted)
		return err
	}

	c.mu.Lock()
	if c.current != iv || c.state != domain.SessionStateAwaitingPermissions {
		c.mu.Unlock()
		c.source.Close()
		return ErrNoActiveSession
	}
	if needQuestions {
		iv.questions = questions
	}
	iv.videoDegraded = degraded
	c.mu.Unlock()

	if degraded {
		c.events.SessionStateChanged(domain.SessionStateAwaitingPermissions, domain.SessionReasonVideoDegraded)
	} else {
		c.startAnalysis(iv)
	}
	c.enterActive(iv, 0)
	return nil
}

// transition moves iv from one state to another, reporting false when iv is
// no longer current or the state changed underneath.
func (c *SessionController) transition(iv *interview, from, to domain.SessionState, reason domain.SessionStateReason) bool {
	c.mu.Lock()
	if c.current != iv || c.state != from {
		c.mu.Unlock()
		return false
	}
	c.state = to
	c.reason = reason
	c.mu.Unlock()

	c.events.SessionStateChanged(to, reason)
	return true
}

func (c *SessionController) terminate(iv *interview, reason domain.SessionStateReason) {
	c.mu.Lock()
	if c.current != iv || c.state == domain.SessionStateTerminated {
		c.mu.Unlock()
		return
	}
	c.state = domain.SessionStateTerminated
	c.reason = reason
	c.mu.Unlock()

	iv.cancel()
	c.events.SessionStateChanged(domain.SessionStateTerminated, reason)
	c.log.WithFields(logrus.Fields{"session": iv.id, "reason": reason}).Info("interview terminated")
}

func (c *SessionController) enterActive(iv *interview, index int) {
	c.mu.Lock()
	if c.current != iv || c.state == domain.SessionStateTerminated {
		c.mu.Unlock()
		return
	}
	iv.index = index
	c.state = domain.SessionStateActive
	c.reason = domain.SessionReasonQuestionStarted
	question := iv.questions[index]
	sessionCtx := iv.ctx
	if iv.speakCancel != nil {
		iv.speakCancel()
	}
	speakCtx, speakCancel := context.WithCancel(sessionCtx)
	iv.speakCancel = speakCancel
	next := ""
	if index+1 < len(iv.questions) {
		next = iv.questions[index+1].Question
	}
	c.mu.Unlock()

	c.resetTranscript()

	c.events.SessionStateChanged(domain.SessionStateActive, domain.SessionReasonQuestionStarted)
	c.events.QuestionStarted(index, question)
	c.log.WithFields(logrus.Fields{"session": iv.id, "question": index + 1}).Info("question started")

	go func() {
		if err := c.arbiter.Speak(speakCtx, question.Question); err != nil {
			c.log.WithError(err).Warn("question playback failed")
			c.events.SessionError(domain.ErrorCodeAudioStream, "question playback failed: "+err.Error())
		}
	}()
	if next != "" {
		go c.arbiter.Prefetch(sessionCtx, next)
	}
}

// cancelSpeech stops the current question's playback.
func (c *SessionController) cancelSpeech(iv *interview) {
	c.mu.Lock()
	cancel := iv.speakCancel
	iv.speakCancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.arbiter.Cancel()
}

func (c *SessionController) resetTranscript() {
	if err := c.transcript.Reset(); err != nil {
		c.transcript.Abort()
		_ = c.transcript.Reset()
	}
}

func (c *SessionController) startAnalysis(iv *interview) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startAnalysisLocked(iv)
}

func (c *SessionController) startAnalysisLocked(iv *interview) {
	loopCtx, cancel := context.WithCancel(iv.ctx)
	done := make(chan struct{})
	iv.loopCancel = cancel
	iv.loopDone = done

	go c.analysisLoop(loopCtx, iv, done)
}

func (c *SessionController) stopAnalysis(iv *interview) {
	c.mu.Lock()
	cancel := iv.loopCancel
	done := iv.loopDone
	iv.loopCancel = nil
	iv.loopDone = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *SessionController) analysisLoop(ctx context.Context, iv *interview, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.cfg.FrameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.tick(ctx, iv) {
				return
			}
		}
	}
}

// tick scores at most one new frame and reports whether the loop should
// keep running.
func (c *SessionController) tick(ctx context.Context, iv *interview) bool {
	obs, ok, err := c.source.Poll(ctx)
	if err != nil {
		if errors.Is(err, ErrSourceClosed) || ctx.Err() != nil {
			return false
		}
		c.log.WithError(err).Debug("landmark detection failed")
		return true
	}
	if !ok {
		return true
	}

	iv.scoreMu.Lock()
	scores, feedback := iv.scorer.Update(obs)
	iv.feedback = feedback
	iv.scoreMu.Unlock()

	c.events.FeedbackChanged(feedback, scores)
	return true
}

// StartAnswer opens the microphone for the current question.
func (c *SessionController) StartAnswer(ctx context.Context) error {
	sessionCtx, err := c.active()
	if err != nil {
		return err
	}
	if err := c.arbiter.StartListening(sessionCtx); err != nil {
		code := domain.ErrorCodeAudioStream
		if errors.Is(err, ErrMicPermissionDenied) {
			code = domain.ErrorCodeMicPermission
		}
		c.log.WithError(err).Warn("listening failed to start")
		c.events.SessionError(code, err.Error())
		return err
	}
	return nil
}

// StopAnswer closes the microphone, keeping what was recognized.
func (c *SessionController) StopAnswer(ctx context.Context) error {
	if _, err := c.active(); err != nil {
		return err
	}
	c.arbiter.StopListening(ctx)
	return nil
}

// active returns the session context when a question is being answered.
func (c *SessionController) active() (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.state != domain.SessionStateActive {
		return nil, ErrNoActiveSession
	}
	return c.current.ctx, nil
}

// Next records the answer to the current question and moves on, finalizing
// after the last question.
func (c *SessionController) Next(ctx context.Context) (domain.AdvanceResult, error) {
	c.mu.Lock()
	iv := c.current
	if iv == nil || c.state != domain.SessionStateActive {
		c.mu.Unlock()
		return domain.AdvanceResult{}, ErrNoActiveSession
	}
	c.state = domain.SessionStateAdvancing
	c.reason = domain.SessionReasonAdvancing
	index := iv.index
	question := iv.questions[index]
	c.mu.Unlock()
	c.events.SessionStateChanged(domain.SessionStateAdvancing, domain.SessionReasonAdvancing)

	c.cancelSpeech(iv)
	c.arbiter.StopListening(ctx)

	metrics, _ := iv.scores()
	record := domain.AnswerRecord{
		QuestionID: question.ID,
		Question:   question.Question,
		Answer:     c.transcript.CurrentText(),
		Timestamp:  c.now(),
		Metrics:    metrics,
	}
	c.resetTranscript()

	c.mu.Lock()
	iv.answers = append(iv.answers, record)
	last := index+1 >= len(iv.questions)
	c.mu.Unlock()
	c.events.AnswerRecorded(record)
	c.log.WithFields(logrus.Fields{"session": iv.id, "question": index + 1}).Info("answer recorded")

	if !last {
		c.enterActive(iv, index+1)
		return domain.AdvanceResult{Record: record, NextIndex: index + 1}, nil
	}
	return c.finalize(ctx, iv, record), nil
}

// finalize releases hardware, then persists the artifact, then asks for the
// report.
func (c *SessionController) finalize(ctx context.Context, iv *interview, record domain.AnswerRecord) domain.AdvanceResult {
	result := domain.AdvanceResult{Record: record, NextIndex: -1, Finished: true}
	if !c.transition(iv, domain.SessionStateAdvancing, domain.SessionStateFinalizing, domain.SessionReasonGeneratingReport) {
		return result
	}

	c.releaseHardware(iv)

	c.mu.Lock()
	final, _ := iv.scores()
	artifact := ports.SessionArtifact{
		SessionID: iv.id,
		Role:      iv.request.Role,
		Mode:      iv.request.Mode,
		StartedAt: iv.startedAt,
		EndedAt:   c.now(),
		Questions: append([]domain.Question(nil), iv.questions...),
		Answers:   append([]domain.AnswerRecord(nil), iv.answers...),
		Final:     final,
	}
	c.mu.Unlock()

	result, reason := c.finalizer.Finalize(context.WithoutCancel(ctx), artifact, result)
	c.terminate(iv, reason)
	return result
}

func (c *SessionController) releaseHardware(iv *interview) {
	c.stopAnalysis(iv)
	c.source.Close()
	c.cancelSpeech(iv)
	c.arbiter.Forget()
	c.transcript.Abort()
}

// Abort ends the session immediately without a report.
func (c *SessionController) Abort() error {
	c.mu.Lock()
	iv := c.current
	if iv == nil || c.state == domain.SessionStateTerminated {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	c.mu.Unlock()

	c.terminate(iv, domain.SessionReasonAborted)
	c.releaseHardware(iv)
	return nil
}

// Status returns a snapshot for the UI.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	iv := c.current
	status := domain.Status{
		State:  c.state,
		Reason: c.reason,
		Active: iv != nil && c.state != domain.SessionStateTerminated,
	}
	if iv != nil {
		status.QuestionIndex = iv.index
		status.QuestionCount = len(iv.questions)
		status.VideoDegraded = iv.videoDegraded
	}
	c.mu.Unlock()

	status.AudioLock = c.arbiter.Lock()
	if iv != nil {
		status.Scores, status.Feedback = iv.scores()
		status.Message = status.Feedback.Message()
	} else {
		status.Scores = domain.BehavioralState{Posture: 100, EyeContact: 100}
	}
	return status
}

// Answers returns the records captured so far in question order.
func (c *SessionController) Answers() []domain.AnswerRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	return append([]domain.AnswerRecord(nil), c.current.answers...)
}
