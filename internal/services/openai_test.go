package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ljoukov/voice-thinker/internal/models"
)

func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIChatComplete(t *testing.T) {
	var captured map[string]interface{}
	srv := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"gpt-4.1","choices":[{"index":0,"message":{"role":"assistant","content":"MODE: curious\n\nHello!"},"finish_reason":"stop"}]}`)
	})

	chat := NewOpenAIChat(NewOpenAIClient("oa-key", srv.URL+"/v1"), "")
	reply, err := chat.Complete(context.Background(), []models.Message{
		{Role: models.RoleSystem, Content: "be nice"},
		{Role: models.RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply != "MODE: curious\n\nHello!" {
		t.Errorf("unexpected reply %q", reply)
	}

	if captured["model"] != OpenAIDefaultChatModel {
		t.Errorf("expected model %s, got %v", OpenAIDefaultChatModel, captured["model"])
	}
	if captured["store"] != true {
		t.Errorf("expected store=true, got %v", captured["store"])
	}
	msgs, _ := captured["messages"].([]interface{})
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	first, _ := msgs[0].(map[string]interface{})
	if first["role"] != "system" || first["content"] != "be nice" {
		t.Errorf("unexpected first message %v", first)
	}
}

func TestOpenAIChatNoChoices(t *testing.T) {
	srv := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[]}`)
	})

	reply, err := NewOpenAIChat(NewOpenAIClient("oa-key", srv.URL+"/v1"), "gpt-4.1").
		Complete(context.Background(), []models.Message{{Role: models.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("expected soft failure, got error: %v", err)
	}
	if reply != "" {
		t.Errorf("expected empty reply, got %q", reply)
	}
}

func TestOpenAIChatTransportError(t *testing.T) {
	srv := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	})

	_, err := NewOpenAIChat(NewOpenAIClient("oa-key", srv.URL+"/v1"), "").
		Complete(context.Background(), []models.Message{{Role: models.RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestOpenAITTSGenerateSpeech(t *testing.T) {
	var captured map[string]interface{}
	srv := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3fake-mp3"))
	})

	tts := NewOpenAITTS(NewOpenAIClient("oa-key", srv.URL+"/v1"))
	resp, err := tts.GenerateSpeech(context.Background(), "Hello there friend", "Speak in a cheerful and positive tone.")
	if err != nil {
		t.Fatalf("GenerateSpeech failed: %v", err)
	}
	if string(resp.AudioData) != "ID3fake-mp3" {
		t.Errorf("unexpected audio %q", resp.AudioData)
	}
	if resp.Format != "mp3" {
		t.Errorf("expected mp3 format, got %s", resp.Format)
	}

	if captured["voice"] != "coral" || captured["model"] != "gpt-4o-mini-tts" {
		t.Errorf("unexpected voice/model: %v / %v", captured["voice"], captured["model"])
	}
	if captured["instructions"] != "Speak in a cheerful and positive tone." {
		t.Errorf("unexpected instructions %v", captured["instructions"])
	}
	if captured["input"] != "Hello there friend" {
		t.Errorf("unexpected input %v", captured["input"])
	}
}
