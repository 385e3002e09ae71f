// Package assistant runs one voice turn: transcribe, complete, parse,
// dispatch, synthesize.
package assistant

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ljoukov/voice-thinker/internal/models"
	"github.com/ljoukov/voice-thinker/internal/services"
	"github.com/ljoukov/voice-thinker/internal/session"
)

const (
	// FallbackReply stands in for a chat reply when the provider returns no content.
	FallbackReply = "Sorry, there is a server error"

	// VoiceStyle is the delivery instruction sent with every synthesis call.
	VoiceStyle = "Speak in a cheerful and positive tone."

	MessageEmptyPrompt    = "empty prompt"
	MessageMalformedReply = "Invalid response format from LLM"

	recordTimeout = 5 * time.Second
)

// TurnRecorder archives finished turns. Failures are logged, never surfaced.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, rec *models.TurnRecord) error
}

type Config struct {
	Transcriber services.Transcriber
	Chat        services.ChatModel
	TTS         services.TTSService

	// SystemPrompt is called once per turn so date-dependent personas stay current.
	SystemPrompt func() string
	SongURL      string

	TranscribeTimeout time.Duration
	ChatTimeout       time.Duration
	SpeechTimeout     time.Duration

	Recorder TurnRecorder // optional
}

type Assistant struct {
	stt          services.Transcriber
	chat         services.ChatModel
	tts          services.TTSService
	systemPrompt func() string
	songURL      string

	transcribeTimeout time.Duration
	chatTimeout       time.Duration
	speechTimeout     time.Duration

	recorder TurnRecorder
}

func New(cfg Config) *Assistant {
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == nil {
		systemPrompt = func() string {
			return BuildSystemPrompt(DefaultPersona(PersonaData{Today: time.Now()}))
		}
	}
	return &Assistant{
		stt:               cfg.Transcriber,
		chat:              cfg.Chat,
		tts:               cfg.TTS,
		systemPrompt:      systemPrompt,
		songURL:           cfg.SongURL,
		transcribeTimeout: cfg.TranscribeTimeout,
		chatTimeout:       cfg.ChatTimeout,
		speechTimeout:     cfg.SpeechTimeout,
		recorder:          cfg.Recorder,
	}
}

// Turn runs one voice turn against sess, mutating its history.
// Unusable content (empty transcript, malformed reply) comes back as an
// error-status result with a nil error; every other failure is returned as
// an error and aborts the remaining steps.
func (a *Assistant) Turn(ctx context.Context, sess *session.Session, audio models.AudioInput) (*models.TurnResult, error) {
	start := time.Now()
	rec := &models.TurnRecord{ID: uuid.New(), SessionID: sess.ID, CreatedAt: start}

	result, err := a.run(ctx, sess, audio, rec)

	rec.DurationMs = int(time.Since(start).Milliseconds())
	a.record(ctx, rec, result, err)
	return result, err
}

func (a *Assistant) run(ctx context.Context, sess *session.Session, audio models.AudioInput, rec *models.TurnRecord) (*models.TurnResult, error) {
	transcript, err := a.transcribe(ctx, audio)
	if err != nil {
		return nil, err
	}
	log.Printf("[Assistant] Received (session=%s): %q", sess.ID, transcript)

	prompt := strings.TrimSpace(transcript)
	rec.Transcript = prompt
	if prompt == "" {
		return models.ErrorResult(MessageEmptyPrompt), nil
	}

	reply, err := a.complete(ctx, sess, prompt)
	if err != nil {
		return nil, err
	}
	rec.Reply = &reply
	log.Printf("[Assistant] LLM reply (session=%s): %q", sess.ID, truncate(reply, 300))

	envelope, err := ParseReply(reply)
	if err != nil {
		return models.ErrorResult(MessageMalformedReply), nil
	}
	rec.Mode = &envelope.Mode

	if IsSongRequest(envelope.Body) {
		log.Printf("[Assistant] Song requested (session=%s, mode=%s)", sess.ID, envelope.Mode)
		return models.SongResult(envelope.Mode, a.songURL), nil
	}

	speech, err := a.synthesize(ctx, envelope.Body)
	if err != nil {
		return nil, err
	}

	return models.SpeechResult(envelope.Mode, base64.StdEncoding.EncodeToString(speech.AudioData)), nil
}

func (a *Assistant) transcribe(ctx context.Context, audio models.AudioInput) (string, error) {
	ctx, cancel := withTimeout(ctx, a.transcribeTimeout)
	defer cancel()

	text, err := a.stt.Transcribe(ctx, audio)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return text, nil
}

// complete appends the prompt to the session, asks the chat model for a
// reply over the system prompt plus the full window, and appends the reply.
// An empty provider reply yields FallbackReply and leaves no assistant message.
func (a *Assistant) complete(ctx context.Context, sess *session.Session, prompt string) (string, error) {
	sess.AppendUser(prompt)

	history := sess.History()
	messages := make([]models.Message, 0, len(history)+1)
	messages = append(messages, models.Message{Role: models.RoleSystem, Content: a.systemPrompt()})
	messages = append(messages, history...)

	ctx, cancel := withTimeout(ctx, a.chatTimeout)
	defer cancel()

	reply, err := a.chat.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if reply == "" {
		log.Printf("[Assistant] Chat provider returned no content (session=%s)", sess.ID)
		return FallbackReply, nil
	}

	sess.AppendAssistant(reply)
	sess.Turns++
	return reply, nil
}

func (a *Assistant) synthesize(ctx context.Context, text string) (*services.TTSResponse, error) {
	ctx, cancel := withTimeout(ctx, a.speechTimeout)
	defer cancel()

	speech, err := a.tts.GenerateSpeech(ctx, text, VoiceStyle)
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	return speech, nil
}

func (a *Assistant) record(ctx context.Context, rec *models.TurnRecord, result *models.TurnResult, err error) {
	switch {
	case err != nil:
		msg := err.Error()
		rec.Outcome, rec.Error = models.TurnOutcomeFailed, &msg
	case result.Status == models.TurnStatusError:
		msg := result.Message
		rec.Outcome, rec.Error = models.TurnOutcomeRejected, &msg
	case result.PlaySong != "":
		rec.Outcome = models.TurnOutcomeSong
	default:
		rec.Outcome = models.TurnOutcomeSpeech
	}

	if a.recorder == nil {
		return
	}

	// The turn is over; archive it even if the client already went away.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := a.recorder.RecordTurn(recCtx, rec); err != nil {
		log.Printf("[Assistant] Failed to record turn %s: %v", rec.ID, err)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	// Back up to a rune boundary so multi-byte characters are never split.
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
