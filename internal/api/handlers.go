package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/ljoukov/voice-thinker/internal/models"
	"github.com/ljoukov/voice-thinker/internal/session"
)

const (
	// SessionHeader selects the conversation a command belongs to.
	SessionHeader = "X-Session-ID"

	audioField     = "audio"
	sessionField   = "session_id"
	multipartInMem = 8 << 20
)

// TurnRunner runs one voice turn against a locked session.
type TurnRunner interface {
	Turn(ctx context.Context, sess *session.Session, audio models.AudioInput) (*models.TurnResult, error)
}

// TurnArchive lists archived turns. Optional.
type TurnArchive interface {
	ListSessionTurns(ctx context.Context, sessionID string) ([]models.TurnRecord, error)
}

type Handler struct {
	turns    TurnRunner
	sessions *session.Manager
	archive  TurnArchive
}

// NewHandler wires the HTTP surface. archive may be nil when no database is configured.
func NewHandler(turns TurnRunner, sessions *session.Manager, archive TurnArchive) *Handler {
	return &Handler{
		turns:    turns,
		sessions: sessions,
		archive:  archive,
	}
}

// Command handles POST /api/command
// Multipart fields:
//   - audio:      the recorded clip (required)
//   - session_id: conversation id, if the X-Session-ID header is absent
//
// Logical failures (empty transcript, malformed reply) are 200 with status
// "error"; upstream failures are 500 with the error text as message.
func (h *Handler) Command(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartInMem); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondCommandError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		respondCommandError(w, http.StatusBadRequest, "Expected multipart/form-data body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		sessionID = r.FormValue(sessionField)
	}
	if sessionID != "" && !session.ValidID(sessionID) {
		respondCommandError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	audio, err := readAudio(r)
	if errors.Is(err, http.ErrMissingFile) {
		respondCommandError(w, http.StatusBadRequest, "No audio file uploaded")
		return
	}
	if err != nil {
		respondCommandError(w, http.StatusBadRequest, "Failed to read audio file")
		return
	}

	sess, release, err := h.sessions.Acquire(r.Context(), sessionID)
	if err != nil {
		log.Printf("[API] Command failed: %v", err)
		respondJSON(w, http.StatusInternalServerError, models.ErrorResult(err.Error()))
		return
	}
	defer release()

	result, turnErr := h.turns.Turn(r.Context(), sess, audio)

	// History changes are kept even when the turn failed part-way.
	if err := h.sessions.Commit(context.WithoutCancel(r.Context()), sess); err != nil {
		log.Printf("[API] Failed to save session %s: %v", sess.ID, err)
	}

	w.Header().Set(SessionHeader, sess.ID)

	if turnErr != nil {
		log.Printf("[API] Command failed (session=%s): %v", sess.ID, turnErr)
		result = models.ErrorResult(turnErr.Error())
		result.SessionID = sess.ID
		respondJSON(w, http.StatusInternalServerError, result)
		return
	}

	result.SessionID = sess.ID
	respondJSON(w, http.StatusOK, result)
}

func readAudio(r *http.Request) (models.AudioInput, error) {
	file, header, err := r.FormFile(audioField)
	if err != nil {
		return models.AudioInput{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return models.AudioInput{}, fmt.Errorf("failed to read upload: %w", err)
	}

	return models.AudioInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// CreateSession handles POST /api/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Create(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	respondJSON(w, http.StatusCreated, sessionResponse(s))
}

// GetSession handles GET /api/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}

	s, err := h.sessions.Get(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	respondJSON(w, http.StatusOK, sessionResponse(s))
}

// EndSession handles DELETE /api/sessions/{id}
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}

	err := h.sessions.End(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to end session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSessionTurns handles GET /api/sessions/{id}/turns
func (h *Handler) ListSessionTurns(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		respondError(w, http.StatusNotImplemented, "Turn archive is not configured")
		return
	}

	id, ok := sessionParam(w, r)
	if !ok {
		return
	}

	turns, err := h.archive.ListSessionTurns(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list turns")
		return
	}

	respondJSON(w, http.StatusOK, models.ListTurnsResponse{
		SessionID: id,
		Turns:     turns,
	})
}

func sessionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !session.ValidID(id) {
		respondError(w, http.StatusBadRequest, "Invalid session ID")
		return "", false
	}
	return id, true
}

func sessionResponse(s *session.Session) models.SessionResponse {
	return models.SessionResponse{
		SessionID: s.ID,
		Messages:  s.History(),
		Turns:     s.Turns,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Failed to write response: %v", err)
	}
}

// respondCommandError keeps /api/command failures in the {status, message} shape.
func respondCommandError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResult(message))
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
