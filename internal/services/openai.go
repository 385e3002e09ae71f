package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"

	"github.com/ljoukov/voice-thinker/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

const (
	OpenAIDefaultChatModel = "gpt-4.1"
	openAISpeechModel      = "gpt-4o-mini-tts"
	openAISpeechVoice      = "coral"
)

// NewOpenAIClient builds the client shared by chat, speech and Whisper.
// baseURL overrides the API root (e.g. a proxy or a test server).
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}

// ---------------------------------------------------------------------------
// Chat completion
// ---------------------------------------------------------------------------

type OpenAIChat struct {
	client *openai.Client
	model  string
}

var _ ChatModel = (*OpenAIChat)(nil)

func NewOpenAIChat(client *openai.Client, model string) *OpenAIChat {
	if model == "" {
		model = OpenAIDefaultChatModel
	}
	return &OpenAIChat{client: client, model: model}
}

// Complete sends the messages as-is and asks OpenAI to store the exchange.
func (s *OpenAIChat) Complete(ctx context.Context, messages []models.Message) (string, error) {
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: oaMsgs,
		Store:    true,
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		log.Printf("[OpenAI chat] no choices in response (model=%s)", s.model)
		return "", nil
	}

	return resp.Choices[0].Message.Content, nil
}

// ---------------------------------------------------------------------------
// Text-to-speech
// ---------------------------------------------------------------------------

type OpenAITTS struct {
	client *openai.Client
	model  string
	voice  string
}

var _ TTSService = (*OpenAITTS)(nil)

func NewOpenAITTS(client *openai.Client) *OpenAITTS {
	return &OpenAITTS{
		client: client,
		model:  openAISpeechModel,
		voice:  openAISpeechVoice,
	}
}

// GenerateSpeech buffers the whole MP3 payload. voiceStyle is sent as the
// model's delivery instructions.
func (s *OpenAITTS) GenerateSpeech(ctx context.Context, text, voiceStyle string) (*TTSResponse, error) {
	log.Printf("[OpenAI TTS] Generating speech (voice=%s, model=%s, textLen=%d)", s.voice, s.model, len(text))

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice),
		Instructions:   voiceStyle,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Close()

	audioData, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read openai audio response: %w", err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("openai returned empty audio")
	}

	durationMs := estimateAudioDuration(text, 1.0)
	log.Printf("[OpenAI TTS] Speech generated (%d bytes, estimated %dms)", len(audioData), durationMs)

	return &TTSResponse{
		AudioData:  audioData,
		DurationMs: durationMs,
		Format:     "mp3",
	}, nil
}

// ---------------------------------------------------------------------------
// Whisper Transcription - fallback speech-to-text provider
// ---------------------------------------------------------------------------

type WhisperTranscriber struct {
	client *openai.Client
}

var _ Transcriber = (*WhisperTranscriber)(nil)

func NewWhisperTranscriber(client *openai.Client) *WhisperTranscriber {
	return &WhisperTranscriber{client: client}
}

// Transcribe sends audio to OpenAI Whisper with temperature 0.
func (s *WhisperTranscriber) Transcribe(ctx context.Context, audio models.AudioInput) (string, error) {
	filename := audio.Filename
	if filename == "" {
		filename = "audio.webm" // Filename hint for the API (required by the library)
	}

	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       openai.Whisper1,
		Reader:      bytes.NewReader(audio.Data),
		FilePath:    filename,
		Temperature: 0,
		Format:      openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription failed: %w", err)
	}

	log.Printf("[Whisper] Transcribed %d bytes (text: %q)", len(audio.Data), truncateString(resp.Text, 80))

	return resp.Text, nil
}
