package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enums
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Mode is the emotional label the assistant attaches to every reply.
// Clients use it to pick the UI presentation for the turn.
type Mode string

const (
	ModeListening   Mode = "listening"
	ModeThinking    Mode = "thinking"
	ModeExplaining  Mode = "explaining"
	ModeEncouraging Mode = "encouraging"
	ModePatient     Mode = "patient"
	ModeFocused     Mode = "focused"
	ModeCurious     Mode = "curious"
	ModeCelebrating Mode = "celebrating"
	ModeClarifying  Mode = "clarifying"
	ModeSummarizing Mode = "summarizing"
)

// DefaultMode is used when the model replies with a label outside AllModes.
const DefaultMode = ModeListening

// AllModes lists the closed set of labels in prompt order.
var AllModes = []Mode{
	ModeListening,
	ModeThinking,
	ModeExplaining,
	ModeEncouraging,
	ModePatient,
	ModeFocused,
	ModeCurious,
	ModeCelebrating,
	ModeClarifying,
	ModeSummarizing,
}

// ParseMode matches a label case-insensitively against AllModes.
func ParseMode(label string) (Mode, bool) {
	candidate := Mode(strings.ToLower(strings.TrimSpace(label)))
	for _, m := range AllModes {
		if m == candidate {
			return m, true
		}
	}
	return "", false
}

type TurnStatus string

const (
	TurnStatusOK    TurnStatus = "ok"
	TurnStatusError TurnStatus = "error"
)

// TurnOutcome records which branch a completed turn took.
type TurnOutcome string

const (
	TurnOutcomeSpeech   TurnOutcome = "speech"
	TurnOutcomeSong     TurnOutcome = "song"
	TurnOutcomeRejected TurnOutcome = "rejected"
	TurnOutcomeFailed   TurnOutcome = "failed"
)

// Models

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// AudioInput is the uploaded clip as received from the client.
type AudioInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReplyEnvelope is the parsed "MODE: <label>\n\n<body>" chat reply.
type ReplyEnvelope struct {
	Mode    Mode   `json:"mode"`
	RawMode string `json:"raw_mode"` // label exactly as the model wrote it
	Body    string `json:"body"`
}

// TurnRecord is one archived turn.
type TurnRecord struct {
	ID         uuid.UUID   `json:"id"`
	SessionID  string      `json:"session_id"`
	Transcript string      `json:"transcript"`
	Reply      *string     `json:"reply,omitempty"`
	Mode       *Mode       `json:"mode,omitempty"`
	Outcome    TurnOutcome `json:"outcome"`
	Error      *string     `json:"error,omitempty"`
	DurationMs int         `json:"duration_ms"`
	CreatedAt  time.Time   `json:"created_at"`
}

// DTOs for API responses

// TurnResult is the JSON body returned by POST /api/command.
// Exactly one of PlaySong and AudioBase64 is set on success; Message is set on error.
type TurnResult struct {
	Status      TurnStatus `json:"status"`
	Mode        Mode       `json:"mode,omitempty"`
	PlaySong    string     `json:"playSong,omitempty"`
	AudioBase64 string     `json:"audioBase64,omitempty"`
	Message     string     `json:"message,omitempty"`
	SessionID   string     `json:"sessionId,omitempty"`
}

func SongResult(mode Mode, url string) *TurnResult {
	return &TurnResult{Status: TurnStatusOK, Mode: mode, PlaySong: url}
}

func SpeechResult(mode Mode, audioBase64 string) *TurnResult {
	return &TurnResult{Status: TurnStatusOK, Mode: mode, AudioBase64: audioBase64}
}

func ErrorResult(message string) *TurnResult {
	return &TurnResult{Status: TurnStatusError, Message: message}
}

type SessionResponse struct {
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
	Turns     int       `json:"turns"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ListTurnsResponse struct {
	SessionID string       `json:"sessionId"`
	Turns     []TurnRecord `json:"turns"`
}
