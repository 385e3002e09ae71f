package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Provider names accepted by STT_PROVIDER, CHAT_PROVIDER and TTS_PROVIDER.
const (
	ProviderFireworks  = "fireworks"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderElevenLabs = "elevenlabs"
)

type Config struct {
	// Server
	APIPort            string `env:"API_PORT" envDefault:"8080"`
	CorsAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS"` // Comma-separated allowed origins (empty = *, dev mode)
	MaxUploadBytes     int64  `env:"MAX_UPLOAD_BYTES" envDefault:"26214400"`

	// Speech-to-text
	STTProvider            string `env:"STT_PROVIDER" envDefault:"fireworks"`
	FireworksKey           string `env:"FIREWORKS_API_KEY"`
	FireworksTranscribeURL string `env:"FIREWORKS_TRANSCRIBE_URL" envDefault:"https://audio-prod.us-virginia-1.direct.fireworks.ai/v1/audio/transcriptions"`

	// Chat completion
	ChatProvider string `env:"CHAT_PROVIDER" envDefault:"openai"`
	ChatModel    string `env:"CHAT_MODEL"` // empty = provider default

	// Text-to-speech
	TTSProvider       string `env:"TTS_PROVIDER" envDefault:"openai"`
	ElevenLabsKey     string `env:"ELEVENLABS_API_KEY"`
	ElevenLabsVoiceID string `env:"ELEVENLABS_VOICE_ID"`

	// OpenAI (chat, speech, whisper fallback)
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	// Gemini (alternative chat provider)
	GeminiKey string `env:"GEMINI_API_KEY"`

	// Assistant
	SongURL          string `env:"SONG_URL" envDefault:"https://pixtoon-media.eviworld.com/songs/weekend-song.mp3"`
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH"` // Persona override; empty = built-in Omni persona
	UserName         string `env:"USER_NAME" envDefault:"Yaroslav"`
	UserLocation     string `env:"USER_LOCATION" envDefault:"the AGI House in Bay Area"`

	// Per-call deadlines for the three upstream services
	TranscribeTimeout time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"30s"`
	ChatTimeout       time.Duration `env:"CHAT_TIMEOUT" envDefault:"60s"`
	SpeechTimeout     time.Duration `env:"SPEECH_TIMEOUT" envDefault:"60s"`

	// Sessions
	SessionMaxMessages   int           `env:"SESSION_MAX_MESSAGES" envDefault:"40"`
	SessionIdleTTL       time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
	RedisURL             string        `env:"REDIS_URL"` // empty = in-memory sessions

	// Postgres turn archive (empty = disabled)
	DatabaseURL string `env:"DATABASE_URL"`
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every selected provider has its credentials.
func (c *Config) Validate() error {
	c.STTProvider = strings.ToLower(strings.TrimSpace(c.STTProvider))
	c.ChatProvider = strings.ToLower(strings.TrimSpace(c.ChatProvider))
	c.TTSProvider = strings.ToLower(strings.TrimSpace(c.TTSProvider))

	switch c.STTProvider {
	case ProviderFireworks:
		if c.FireworksKey == "" {
			return fmt.Errorf("FIREWORKS_API_KEY is required")
		}
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for STT_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("unknown STT_PROVIDER %q (allowed: fireworks, openai)", c.STTProvider)
	}

	switch c.ChatProvider {
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	case ProviderGemini:
		if c.GeminiKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for CHAT_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unknown CHAT_PROVIDER %q (allowed: openai, gemini)", c.ChatProvider)
	}

	switch c.TTSProvider {
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	case ProviderElevenLabs:
		if c.ElevenLabsKey == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY is required for TTS_PROVIDER=elevenlabs")
		}
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q (allowed: openai, elevenlabs)", c.TTSProvider)
	}

	if c.SessionMaxMessages < 2 {
		return fmt.Errorf("SESSION_MAX_MESSAGES must be at least 2, got %d", c.SessionMaxMessages)
	}

	return nil
}
