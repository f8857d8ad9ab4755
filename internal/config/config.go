package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"interviewcoach/internal/scoring"
)

const appDir = "interviewcoach"

// Config stores runtime configuration for the interview coach.
type Config struct {
	Deepgram  DeepgramConfig
	Gemini    GeminiConfig
	Audio     AudioConfig
	Video     VideoConfig
	Landmarks LandmarksConfig
	Glossary  GlossaryConfig
	Questions QuestionsConfig
	Session   SessionConfig
	Log       LogConfig
	Scoring   scoring.Config

	// File is the TOML overlay that was applied, empty when none was found.
	File string
}

type DeepgramConfig struct {
	APIKey          string
	APIBaseURL      string
	Model           string
	Language        string
	SmartFormat     bool
	Keywords        []string
	SpeakModel      string
	SpeakSampleRate int
}

type GeminiConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	LocalSpeaker    string
}

type VideoConfig struct {
	InputFormat string
	InputDevice string
	Width       int
	Height      int
	FrameRate   int
	Retries     int
	Backoff     time.Duration
}

type LandmarksConfig struct {
	URL     string
	Timeout time.Duration
}

type GlossaryConfig struct {
	Path      string
	PassLimit int
}

type QuestionsConfig struct {
	// BankPath is an offline YAML question bank used when no Gemini key is
	// configured.
	BankPath string
	Count    int
}

type SessionConfig struct {
	ChunkSize       int
	StopTimeout     time.Duration
	FrameInterval   time.Duration
	QuestionTimeout time.Duration
	ReportTimeout   time.Duration
	ArtifactDir     string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load resolves configuration from the environment (seeded from a .env file
// without overriding variables already set) and then applies the optional
// TOML overlay.
func Load() (Config, error) {
	envFile := envOrDefault("COACH_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	configDir, dataDir, err := baseDirs()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Deepgram: DeepgramConfig{
			APIKey:          strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:      envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:           envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:        strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
			SmartFormat:     envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
			Keywords:        envList("COACH_KEYWORDS"),
			SpeakModel:      envOrDefault("DEEPGRAM_SPEAK_MODEL", "aura-2-thalia-en"),
			SpeakSampleRate: envOrDefaultInt("DEEPGRAM_SPEAK_SAMPLE_RATE", 24000),
		},
		Gemini: GeminiConfig{
			APIKey:      firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
			Model:       envOrDefault("COACH_GEMINI_MODEL", "gemma-3-27b-it"),
			BaseURL:     strings.TrimSpace(os.Getenv("COACH_GEMINI_BASE_URL")),
			Temperature: float32(envOrDefaultFloat("COACH_GEMINI_TEMPERATURE", 0.7)),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("COACH_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("COACH_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     firstNonEmpty(os.Getenv("COACH_AUDIO_INPUT_DEVICE"), os.Getenv("DEEPGRAM_PULSE_SOURCE"), "default"),
			SampleRate:      envOrDefaultInt("COACH_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("COACH_CHANNELS", 1),
			LocalSpeaker:    strings.TrimSpace(os.Getenv("COACH_LOCAL_SPEAKER")),
		},
		Video: VideoConfig{
			InputFormat: envOrDefault("COACH_VIDEO_INPUT_FORMAT", "v4l2"),
			InputDevice: envOrDefault("COACH_VIDEO_INPUT_DEVICE", "/dev/video0"),
			Width:       envOrDefaultInt("COACH_VIDEO_WIDTH", 640),
			Height:      envOrDefaultInt("COACH_VIDEO_HEIGHT", 480),
			FrameRate:   envOrDefaultInt("COACH_VIDEO_FPS", 15),
			Retries:     envOrDefaultInt("COACH_CAMERA_RETRIES", 3),
			Backoff:     envOrDefaultMillis("COACH_CAMERA_BACKOFF_MS", 1500),
		},
		Landmarks: LandmarksConfig{
			URL:     envOrDefault("COACH_LANDMARK_URL", "http://127.0.0.1:8765"),
			Timeout: envOrDefaultMillis("COACH_LANDMARK_TIMEOUT_MS", 2000),
		},
		Glossary: GlossaryConfig{
			Path:      envOrDefault("COACH_GLOSSARY_FILE", filepath.Join(configDir, appDir, "glossary.txt")),
			PassLimit: envOrDefaultInt("COACH_GLOSSARY_PASS_LIMIT", 30),
		},
		Questions: QuestionsConfig{
			BankPath: envOrDefault("COACH_QUESTION_BANK", filepath.Join(configDir, appDir, "questions.yaml")),
			Count:    envOrDefaultInt("COACH_QUESTION_COUNT", 5),
		},
		Session: SessionConfig{
			ChunkSize:       envOrDefaultInt("COACH_AUDIO_CHUNK_SIZE", 4096),
			StopTimeout:     envOrDefaultMillis("COACH_STOP_TIMEOUT_MS", 4000),
			FrameInterval:   envOrDefaultMillis("COACH_FRAME_INTERVAL_MS", 100),
			QuestionTimeout: envOrDefaultMillis("COACH_QUESTION_TIMEOUT_MS", 30000),
			ReportTimeout:   envOrDefaultMillis("COACH_REPORT_TIMEOUT_MS", 60000),
			ArtifactDir:     envOrDefault("COACH_ARTIFACT_DIR", filepath.Join(dataDir, appDir, "sessions")),
		},
		Log: LogConfig{
			Level:  envOrDefault("COACH_LOG_LEVEL", "info"),
			Format: envOrDefault("COACH_LOG_FORMAT", "text"),
		},
		Scoring: scoring.DefaultConfig(),
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Video.Retries < 0 {
		cfg.Video.Retries = 3
	}
	if cfg.Glossary.PassLimit <= 0 {
		cfg.Glossary.PassLimit = 30
	}
	if cfg.Questions.Count <= 0 {
		cfg.Questions.Count = 5
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}

	path := strings.TrimSpace(os.Getenv("COACH_CONFIG_FILE"))
	explicit := path != ""
	if !explicit {
		path = filepath.Join(configDir, appDir, "config.toml")
	}
	applied, err := applyFile(&cfg, path)
	if err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}
	if applied {
		cfg.File = path
	}
	cfg.Scoring = cfg.Scoring.Normalize()

	return cfg, nil
}

func baseDirs() (configDir string, dataDir string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", errors.New("could not determine home directory")
	}
	configDir = firstNonEmpty(os.Getenv("XDG_CONFIG_HOME"), filepath.Join(home, ".config"))
	dataDir = firstNonEmpty(os.Getenv("XDG_DATA_HOME"), filepath.Join(home, ".local", "share"))
	return configDir, dataDir, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func envOrDefaultMillis(key string, fallback int) time.Duration {
	ms := envOrDefaultInt(key, fallback)
	if ms <= 0 {
		ms = fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
