package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ljoukov/voice-thinker/internal/models"
	"google.golang.org/genai"
)

const GeminiDefaultChatModel = "gemini-2.5-flash"

// GeminiChat is the alternative chat provider backed by the Gemini API.
type GeminiChat struct {
	client *genai.Client
	model  string
}

var _ ChatModel = (*GeminiChat)(nil)

func NewGeminiChat(ctx context.Context, apiKey, model string) (*GeminiChat, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = GeminiDefaultChatModel
	}
	return &GeminiChat{client: client, model: model}, nil
}

// Complete maps system messages to the system instruction and the rest of
// the history to user/model contents.
func (s *GeminiChat) Complete(ctx context.Context, messages []models.Message) (string, error) {
	system, contents := toGeminiContents(messages)
	if len(contents) == 0 {
		return "", fmt.Errorf("gemini request has no user or assistant messages")
	}

	config := &genai.GenerateContentConfig{SystemInstruction: system}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		log.Printf("[Gemini chat] empty response (model=%s)", s.model)
	}
	return text, nil
}

func toGeminiContents(messages []models.Message) (*genai.Content, []*genai.Content) {
	var systemParts []string
	contents := make([]*genai.Content, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			systemParts = append(systemParts, m.Content)
		case models.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	var system *genai.Content
	if len(systemParts) > 0 {
		system = genai.NewContentFromText(strings.Join(systemParts, "\n\n"), genai.RoleUser)
	}
	return system, contents
}
