package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/ljoukov/voice-thinker/internal/models"
)

// ---------------------------------------------------------------------------
// Fireworks Speech-to-Text Service
// Uses the Fireworks audio REST API (OpenAI-compatible multipart upload).
// Model: whisper-v3, deterministic decoding, Silero voice activity detection.
// ---------------------------------------------------------------------------

const (
	FireworksDefaultURL  = "https://audio-prod.us-virginia-1.direct.fireworks.ai/v1/audio/transcriptions"
	fireworksModel       = "whisper-v3"
	fireworksTemperature = "0"
	fireworksVADModel    = "silero"
)

// FireworksTranscriber handles speech-to-text via the Fireworks API.
type FireworksTranscriber struct {
	apiKey string
	url    string
	client *http.Client
}

// Ensure FireworksTranscriber implements Transcriber at compile time.
var _ Transcriber = (*FireworksTranscriber)(nil)

// NewFireworksTranscriber creates a transcriber posting to url (empty = production endpoint).
func NewFireworksTranscriber(apiKey, url string) *FireworksTranscriber {
	if url == "" {
		url = FireworksDefaultURL
	}
	return &FireworksTranscriber{
		apiKey: apiKey,
		url:    url,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

type fireworksTranscription struct {
	Text *string `json:"text"`
}

// Transcribe uploads the clip and returns the raw (untrimmed) transcript.
func (s *FireworksTranscriber) Transcribe(ctx context.Context, audio models.AudioInput) (string, error) {
	body, contentType, err := buildTranscriptionForm(audio)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.url, body)
	if err != nil {
		return "", fmt.Errorf("failed to create Fireworks request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	log.Printf("[Fireworks] Transcribing audio (model=%s, bytes=%d)", fireworksModel, len(audio.Data))

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("Fireworks request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read Fireworks response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[Fireworks] Transcription failed with status %d: %s", resp.StatusCode, truncateString(string(respBody), 200))
		return "", &StatusError{Provider: "Fireworks", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return decodeTranscription(respBody)
}

// decodeTranscription enforces the {text: string} response shape.
func decodeTranscription(data []byte) (string, error) {
	var parsed fireworksTranscription
	if err := sonic.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}
	if parsed.Text == nil {
		return "", fmt.Errorf("%w: missing string field \"text\"", ErrSchemaValidation)
	}
	return *parsed.Text, nil
}

func buildTranscriptionForm(audio models.AudioInput) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	filename := audio.Filename
	if filename == "" {
		filename = "audio.webm"
	}
	contentType := audio.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write audio part: %w", err)
	}

	fields := []struct{ name, value string }{
		{"model", fireworksModel},
		{"temperature", fireworksTemperature},
		{"vad_model", fireworksVADModel},
	}
	for _, f := range fields {
		if err := writer.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f.name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// truncateString truncates a string to maxLen and appends "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	// Back up to a rune boundary so multi-byte characters are never split.
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
