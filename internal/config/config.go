package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration.
type Config struct {
	Deepgram DeepgramConfig
	Audio    AudioConfig
	Analyzer AnalyzerConfig
	Store    StoreConfig
	Vocab    VocabConfig
	Log      LogConfig
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	ChunkSize       int
}

type AnalyzerConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type StoreConfig struct {
	Path string
}

type VocabConfig struct {
	Path           string
	IterationLimit int
}

type LogConfig struct {
	Dir   string
	Level string
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	configDir := filepath.Join(home, ".config", "medscribe")

	cfg := Config{
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2-medical"),
			Language:    strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("MEDSCRIBE_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("MEDSCRIBE_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("MEDSCRIBE_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("MEDSCRIBE_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("MEDSCRIBE_CHANNELS", 1),
			ChunkSize:       envOrDefaultInt("MEDSCRIBE_AUDIO_CHUNK_SIZE", 4096),
		},
		Analyzer: AnalyzerConfig{
			URL:     strings.TrimSpace(os.Getenv("MEDSCRIBE_ANALYZER_URL")),
			APIKey:  strings.TrimSpace(os.Getenv("MEDSCRIBE_ANALYZER_KEY")),
			Timeout: time.Duration(envOrDefaultInt("MEDSCRIBE_ANALYZER_TIMEOUT_MS", 60000)) * time.Millisecond,
		},
		Store: StoreConfig{
			Path: envOrDefault("MEDSCRIBE_DB_PATH", filepath.Join(configDir, "notes.sqlite")),
		},
		Vocab: VocabConfig{
			Path:           envOrDefault("MEDSCRIBE_VOCAB_FILE", filepath.Join(configDir, "vocabulary.rules")),
			IterationLimit: envOrDefaultInt("MEDSCRIBE_VOCAB_ITERATION_LIMIT", 30),
		},
		Log: LogConfig{
			Dir:   strings.TrimSpace(os.Getenv("MEDSCRIBE_LOG_PATH")),
			Level: envOrDefault("MEDSCRIBE_LOG_LEVEL", "info"),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}
	if cfg.Analyzer.Timeout <= 0 {
		cfg.Analyzer.Timeout = 60 * time.Second
	}
	if cfg.Vocab.IterationLimit <= 0 {
		cfg.Vocab.IterationLimit = 30
	}

	return cfg, nil
}

// AnalyzerEnabled reports whether an analyzer endpoint is configured.
func (c Config) AnalyzerEnabled() bool {
	return c.Analyzer.URL != ""
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
