// Package scoring derives decaying posture and eye-contact scores from
// per-frame landmark observations.
package scoring

import (
	"math"

	"interviewcoach/internal/domain"
)

// Score bounds. Both scores start at InitialScore.
const (
	MinScore     = 0.0
	MaxScore     = 100.0
	InitialScore = MaxScore
)

// GazeThresholds are per-direction limits; an intensity above its limit
// means the candidate is looking away. They are deliberately asymmetric.
type GazeThresholds struct {
	Left  float64
	Right float64
	Up    float64
	Down  float64
}

// Config holds the posture bands, gaze thresholds and score steps.
type Config struct {
	// CenterBand is the allowed horizontal distance of the primary keypoint
	// from the frame midline.
	CenterBand float64
	UprightMin float64
	UprightMax float64

	Gaze GazeThresholds

	PosturePenalty     float64
	EyeContactPenalty  float64
	PostureRecovery    float64
	EyeContactRecovery float64
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		CenterBand: 0.15,
		UprightMin: 0.2,
		UprightMax: 0.8,
		Gaze: GazeThresholds{
			Left:  0.30,
			Right: 0.30,
			Up:    0.45,
			Down:  0.35,
		},
		PosturePenalty:     0.5,
		EyeContactPenalty:  0.8,
		PostureRecovery:    0.1,
		EyeContactRecovery: 0.2,
	}
}

// Normalize replaces unusable values with defaults.
func (c Config) Normalize() Config {
	def := DefaultConfig()
	if c.CenterBand <= 0 || c.CenterBand > 0.5 {
		c.CenterBand = def.CenterBand
	}
	if c.UprightMin < 0 || c.UprightMax > 1 || c.UprightMin >= c.UprightMax {
		c.UprightMin, c.UprightMax = def.UprightMin, def.UprightMax
	}
	c.Gaze.Left = positiveOr(c.Gaze.Left, def.Gaze.Left)
	c.Gaze.Right = positiveOr(c.Gaze.Right, def.Gaze.Right)
	c.Gaze.Up = positiveOr(c.Gaze.Up, def.Gaze.Up)
	c.Gaze.Down = positiveOr(c.Gaze.Down, def.Gaze.Down)
	c.PosturePenalty = positiveOr(c.PosturePenalty, def.PosturePenalty)
	c.EyeContactPenalty = positiveOr(c.EyeContactPenalty, def.EyeContactPenalty)
	c.PostureRecovery = positiveOr(c.PostureRecovery, def.PostureRecovery)
	c.EyeContactRecovery = positiveOr(c.EyeContactRecovery, def.EyeContactRecovery)
	return c
}

// Scorer owns the BehavioralState. It is not safe for concurrent use;
// exactly one producer is expected to call Update.
type Scorer struct {
	cfg      Config
	state    domain.BehavioralState
	feedback domain.Feedback
}

// NewScorer returns a scorer initialized to full scores.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{
		cfg:   cfg.Normalize(),
		state: domain.BehavioralState{Posture: InitialScore, EyeContact: InitialScore},
	}
}

// Update folds one observation into the scores and returns the new snapshot
// together with the feedback for this frame.
func (s *Scorer) Update(obs domain.LandmarkObservation) (domain.BehavioralState, domain.Feedback) {
	switch {
	case !obs.FaceDetected():
		s.feedback = domain.FeedbackFaceNotDetected
	case !s.postureOK(obs.Keypoints[domain.PrimaryKeypoint]):
		s.feedback = domain.FeedbackCenterYourself
		s.state.Posture = clamp(s.state.Posture - s.cfg.PosturePenalty)
	case !s.gazeOK(obs.Gaze):
		s.feedback = domain.FeedbackMaintainEyeContact
		s.state.EyeContact = clamp(s.state.EyeContact - s.cfg.EyeContactPenalty)
	default:
		s.feedback = domain.FeedbackNone
		s.state.Posture = clamp(s.state.Posture + s.cfg.PostureRecovery)
		s.state.EyeContact = clamp(s.state.EyeContact + s.cfg.EyeContactRecovery)
	}
	return s.state, s.feedback
}

// State returns the current snapshot.
func (s *Scorer) State() domain.BehavioralState {
	return s.state
}

// Feedback returns the verdict for the most recent observation.
func (s *Scorer) Feedback() domain.Feedback {
	return s.feedback
}

// Config returns the normalized configuration in use.
func (s *Scorer) Config() Config {
	return s.cfg
}

func (s *Scorer) postureOK(p domain.Point) bool {
	centered := math.Abs(p.X-0.5) < s.cfg.CenterBand
	upright := p.Y > s.cfg.UprightMin && p.Y < s.cfg.UprightMax
	return centered && upright
}

func (s *Scorer) gazeOK(g domain.Gaze) bool {
	t := s.cfg.Gaze
	return g.Left <= t.Left && g.Right <= t.Right && g.Up <= t.Up && g.Down <= t.Down
}

func clamp(v float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, v))
}

func positiveOr(v, fallback float64) float64 {
	if v <= 0 || math.IsNaN(v) {
		return fallback
	}
	return v
}
