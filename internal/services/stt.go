package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ljoukov/voice-thinker/internal/models"
)

// ErrSchemaValidation is returned when an upstream response body does not
// have the shape we require. Extra fields are fine; missing or mistyped ones are not.
var ErrSchemaValidation = errors.New("response failed schema validation")

// StatusError is returned when an upstream service answers with a non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error: %d", e.Provider, e.StatusCode)
}

// Transcriber turns an uploaded audio clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio models.AudioInput) (string, error)
}

// ChatModel produces one completion for an ordered message list.
// An empty string with a nil error means the provider returned no content.
type ChatModel interface {
	Complete(ctx context.Context, messages []models.Message) (string, error)
}
