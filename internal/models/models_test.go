package models

import (
	"encoding/json"
	"testing"
)

func TestParseMode(t *testing.T) {
	for _, m := range AllModes {
		got, ok := ParseMode(string(m))
		if !ok || got != m {
			t.Errorf("ParseMode(%q) = %q, %v", m, got, ok)
		}
	}

	if got, ok := ParseMode("  Celebrating "); !ok || got != ModeCelebrating {
		t.Errorf("expected case-insensitive match, got %q, %v", got, ok)
	}

	if _, ok := ParseMode("angry"); ok {
		t.Error("expected unknown label to be rejected")
	}
}

func TestAllModes(t *testing.T) {
	if len(AllModes) != 10 {
		t.Fatalf("expected 10 modes, got %d", len(AllModes))
	}

	seen := make(map[Mode]bool)
	for _, m := range AllModes {
		if m == "" {
			t.Errorf("empty mode found")
		}
		if seen[m] {
			t.Errorf("duplicate mode %q", m)
		}
		seen[m] = true
	}

	if !seen[DefaultMode] {
		t.Errorf("default mode %q not in AllModes", DefaultMode)
	}
}

func TestTurnResultJSON(t *testing.T) {
	data, err := json.Marshal(SongResult(ModeCelebrating, "https://example.com/song.mp3"))
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["status"] != "ok" || result["playSong"] != "https://example.com/song.mp3" {
		t.Errorf("unexpected song envelope: %s", data)
	}
	if _, ok := result["audioBase64"]; ok {
		t.Errorf("song envelope must not carry audioBase64: %s", data)
	}
	if _, ok := result["message"]; ok {
		t.Errorf("song envelope must not carry message: %s", data)
	}

	data, _ = json.Marshal(ErrorResult("empty prompt"))
	if string(data) != `{"status":"error","message":"empty prompt"}` {
		t.Errorf("unexpected error envelope: %s", data)
	}
}
