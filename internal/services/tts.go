package services

import (
	"bytes"
	"context"
)

// ---------------------------------------------------------------------------
// TTSService - common interface for text-to-speech providers
// Both OpenAI and ElevenLabs implement this interface so the assistant
// can use whichever is configured without knowing the underlying provider.
// ---------------------------------------------------------------------------

// TTSResponse is the common response type from any TTS provider.
type TTSResponse struct {
	AudioData  []byte
	DurationMs int
	Format     string // "mp3", "wav", etc.
}

// TTSService is the interface that any TTS provider must implement.
type TTSService interface {
	// GenerateSpeech converts text to audio using the provider's default settings.
	// voiceStyle is a human-readable description of the desired delivery style
	// (e.g., "Speak in a cheerful and positive tone."). The provider may or may not use it.
	GenerateSpeech(ctx context.Context, text, voiceStyle string) (*TTSResponse, error)
}

// estimateAudioDuration estimates duration based on text length and speed.
// Conversational speaking rate is ~150 words per minute at normal speed.
func estimateAudioDuration(text string, speed float64) int {
	if speed <= 0 {
		speed = 1.0
	}
	words := len(bytes.Fields([]byte(text)))
	actualWPM := 150.0 * speed

	minutes := float64(words) / actualWPM
	return int(minutes * 60 * 1000)
}
