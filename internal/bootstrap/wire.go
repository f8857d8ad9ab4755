package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"interviewcoach/internal/artifact"
	"interviewcoach/internal/audio"
	"interviewcoach/internal/config"
	"interviewcoach/internal/domain"
	"interviewcoach/internal/glossary"
	"interviewcoach/internal/logging"
	"interviewcoach/internal/ports"
	"interviewcoach/internal/providers/deepgram"
	"interviewcoach/internal/providers/gemini"
	"interviewcoach/internal/providers/landmarks"
	"interviewcoach/internal/providers/questionbank"
	"interviewcoach/internal/usecase"
	"interviewcoach/internal/video"
)

// ErrNoQuestionSource is returned when neither Gemini nor a question bank is
// configured.
var ErrNoQuestionSource = errors.New("no question source: set GEMINI_API_KEY or provide a question bank")

// ErrReportsUnavailable is returned by the report stand-in used when Gemini is
// not configured. Sessions still save their artifact.
var ErrReportsUnavailable = errors.New("performance reports need GEMINI_API_KEY")

// Services is the assembled runtime graph.
type Services struct {
	Controller   *usecase.SessionController
	Config       config.Config
	Logger       *logrus.Logger
	QuestionFrom string
	LocalSpeaker string
}

// Build wires all backend dependencies for the current runtime.
func Build(ctx context.Context, eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	logger := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log := logging.Component(logger, logging.CategoryApp)

	terms, err := glossary.Load(cfg.Glossary.Path, cfg.Glossary.PassLimit)
	if err != nil {
		return Services{}, err
	}

	questions, reports, from, err := Generators(ctx, cfg, logger)
	if err != nil {
		return Services{}, err
	}

	dg := deepgram.Config{
		APIKey:          cfg.Deepgram.APIKey,
		APIBaseURL:      cfg.Deepgram.APIBaseURL,
		Model:           cfg.Deepgram.Model,
		Language:        cfg.Deepgram.Language,
		SmartFormat:     cfg.Deepgram.SmartFormat,
		Keywords:        cfg.Deepgram.Keywords,
		SpeakModel:      cfg.Deepgram.SpeakModel,
		SpeakSampleRate: cfg.Deepgram.SpeakSampleRate,
	}

	transcription := usecase.NewTranscriptionChannel(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		deepgram.NewProvider(dg),
		terms,
		eventSink,
		usecase.TranscriptionConfig{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Streaming: ports.StreamingConfig{
				SampleRate:     cfg.Audio.SampleRate,
				Channels:       cfg.Audio.Channels,
				Encoding:       "linear16",
				InterimResults: true,
			},
			ChunkSize:   cfg.Session.ChunkSize,
			StopTimeout: cfg.Session.StopTimeout,
		},
		logging.Component(logger, logging.CategoryTranscribe),
	)

	var fallback ports.LocalSpeaker
	speakerName := ""
	if speaker := audio.FindLocalSpeaker(cfg.Audio.LocalSpeaker); speaker != nil {
		fallback = speaker
		speakerName = speaker.Command()
	} else {
		log.Warn("no local speech command found; questions are silent when synthesis fails")
	}

	arbiter := usecase.NewAudioArbiter(
		deepgram.NewSpeaker(dg),
		audio.NewOtoPlayer(cfg.Deepgram.SpeakSampleRate, 1),
		fallback,
		transcription,
		logging.Component(logger, logging.CategoryAudio),
	)

	source := usecase.NewFrameLandmarkSource(
		video.NewFFMPEGCamera(cfg.Audio.RecorderCommand),
		landmarks.NewClient(cfg.Landmarks.URL, cfg.Landmarks.Timeout),
		usecase.LandmarkSourceConfig{
			Video: ports.VideoConfig{
				InputFormat: cfg.Video.InputFormat,
				InputDevice: cfg.Video.InputDevice,
				Width:       cfg.Video.Width,
				Height:      cfg.Video.Height,
				FrameRate:   cfg.Video.FrameRate,
			},
			Retries: cfg.Video.Retries,
			Backoff: cfg.Video.Backoff,
		},
		logging.Component(logger, logging.CategoryCamera),
	)

	controller := usecase.NewSessionController(
		source,
		transcription,
		arbiter,
		questions,
		reports,
		artifact.NewWriter(cfg.Session.ArtifactDir),
		eventSink,
		artifact.NewSessionID,
		usecase.Config{
			FrameInterval:   cfg.Session.FrameInterval,
			QuestionTimeout: cfg.Session.QuestionTimeout,
			ReportTimeout:   cfg.Session.ReportTimeout,
			Scoring:         cfg.Scoring,
		},
		logging.Component(logger, logging.CategorySession),
	)

	log.WithFields(logrus.Fields{
		"questions": from,
		"glossary":  terms.Len(),
		"config":    cfg.File,
	}).Info("services ready")

	return Services{
		Controller:   controller,
		Config:       cfg,
		Logger:       logger,
		QuestionFrom: from,
		LocalSpeaker: speakerName,
	}, nil
}

// Generators picks Gemini when a key is configured, falling back to the
// offline bank for questions. Without Gemini the bank is required. from
// names the source for display.
func Generators(ctx context.Context, cfg config.Config, logger *logrus.Logger) (ports.QuestionSource, ports.ReportGenerator, string, error) {
	bank, err := loadBank(cfg.Questions.BankPath)
	if err != nil {
		return nil, nil, "", err
	}

	client, err := gemini.New(ctx, gemini.Config{
		APIKey:      cfg.Gemini.APIKey,
		Model:       cfg.Gemini.Model,
		BaseURL:     cfg.Gemini.BaseURL,
		Temperature: cfg.Gemini.Temperature,
	})
	switch {
	case errors.Is(err, gemini.ErrMissingAPIKey):
		if bank == nil {
			return nil, nil, "", ErrNoQuestionSource
		}
		return bank, unavailableReports{}, "bank", nil
	case err != nil:
		return nil, nil, "", err
	}

	var questions ports.QuestionSource = gemini.NewQuestionSource(client)
	from := client.Model()
	if bank != nil {
		questions = fallbackQuestions{
			primary:  questions,
			fallback: bank,
			log:      logging.Component(logger, logging.CategoryGemini),
		}
		from += "+bank"
	}
	return questions, gemini.NewReportGenerator(client), from, nil
}

// loadBank returns nil without error when the bank file does not exist.
func loadBank(path string) (*questionbank.Bank, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return questionbank.Load(path)
}

type fallbackQuestions struct {
	primary  ports.QuestionSource
	fallback ports.QuestionSource
	log      *logrus.Entry
}

func (f fallbackQuestions) Generate(ctx context.Context, req ports.QuestionRequest) ([]domain.Question, error) {
	questions, err := f.primary.Generate(ctx, req)
	if err == nil && len(questions) > 0 {
		return questions, nil
	}
	if err == nil {
		err = errors.New("question generation returned no questions")
	}
	if ctx.Err() != nil {
		return nil, err
	}
	f.log.WithError(err).Warn("question generation failed; using the question bank")
	questions, bankErr := f.fallback.Generate(ctx, req)
	if bankErr != nil {
		return nil, fmt.Errorf("%w (bank: %v)", err, bankErr)
	}
	return questions, nil
}

type unavailableReports struct{}

func (unavailableReports) Generate(context.Context, ports.ReportRequest) (domain.Report, error) {
	return domain.Report{}, ErrReportsUnavailable
}
