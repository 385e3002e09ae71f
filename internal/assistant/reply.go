package assistant

import (
	"errors"
	"log"
	"regexp"
	"strings"

	"github.com/ljoukov/voice-thinker/internal/models"
)

// ErrMalformedReply is returned when a chat reply does not follow the
// "MODE: <label>\n\n<body>" contract. Such replies are rejected, not repaired.
var ErrMalformedReply = errors.New("invalid response format from LLM")

var replyPattern = regexp.MustCompile(`^MODE:\s*(\w+)\s*\n\n([\s\S]*)`)

// ParseReply splits a raw reply into its mode and body. The body is returned
// verbatim. Labels outside models.AllModes fall back to models.DefaultMode;
// RawMode keeps what the model actually wrote.
func ParseReply(reply string) (*models.ReplyEnvelope, error) {
	match := replyPattern.FindStringSubmatch(reply)
	if match == nil {
		return nil, ErrMalformedReply
	}

	raw, body := match[1], match[2]
	mode, ok := models.ParseMode(raw)
	if !ok {
		log.Printf("[Reply] Unknown mode %q, using %q", raw, models.DefaultMode)
		mode = models.DefaultMode
	}

	return &models.ReplyEnvelope{Mode: mode, RawMode: raw, Body: body}, nil
}

// IsSongRequest reports whether a reply body asks for the song. Both an exact
// (trimmed) sentinel and a case-insensitive substring match count, so a body
// that merely mentions the sentinel also triggers the song.
func IsSongRequest(body string) bool {
	return strings.TrimSpace(body) == SongSentinel ||
		strings.Contains(strings.ToLower(body), SongSentinel)
}
