package assistant

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ljoukov/voice-thinker/internal/models"
)

// SongSentinel is the body the model must emit verbatim to request the song.
const SongSentinel = "play-song"

// PersonaData fills the built-in persona template.
type PersonaData struct {
	UserName string
	Location string
	Today    time.Time
}

const defaultPersona = `Your name is Omni, you are a helpful assistant and can run several tasks at the same time.

User name is %s.
Today is %s.
%s

If asked what you can do, explain that Omni has two modes:
- it can start/stop tasks and tell the user about the tasks status
- it can also let the user chat with a running task, such as researching the web, continuing started conversations, etc.

If asked whether the user can update your code say yes; in fact you are already running such a task, but it needs help.

If the user asks about their agenda:
- AGI House hackathon
- tennis match tomorrow, 8am
- New York trip on Monday
- most important tonight: sleep 8 hours

When running tasks you can use AIs from different vendors: OpenAI, Anthropic and Google.
You can also use MCP (model context protocol) within tasks.

You are currently running tasks:
- you are preparing a report about Google's AlphaEvolve algorithm, you think you need 10 more minutes to complete
- you are running a coding task, editing Omni (your own) code; that task is stuck and needs the user's assistance (if asked what is stuck, explain you updated packages and resolving conflicts is not one of AI strengths)

Try to make your answers very concise and to the point as appropriate.`

// DefaultPersona renders the built-in Omni persona.
func DefaultPersona(data PersonaData) string {
	name := data.UserName
	if name == "" {
		name = "the user"
	}
	location := ""
	if data.Location != "" {
		location = "User is at " + data.Location + "."
	}
	return fmt.Sprintf(defaultPersona, name, data.Today.Format("Monday, 2 January 2006"), location)
}

// LoadPersona reads a persona override from path.
func LoadPersona(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read system prompt %s: %w", path, err)
	}
	persona := strings.TrimSpace(string(data))
	if persona == "" {
		return "", fmt.Errorf("system prompt %s is empty", path)
	}
	return persona, nil
}

// BuildSystemPrompt wraps a persona with the reply contract the parser relies
// on: the mode list, the song sentinel and the two-part output format.
func BuildSystemPrompt(persona string) string {
	labels := make([]string, len(models.AllModes))
	for i, m := range models.AllModes {
		labels[i] = string(m)
	}

	var sb strings.Builder
	sb.WriteString("When responding ALWAYS make the first line reflect the most appropriate mode for your response,\n")
	sb.WriteString("one of " + strings.Join(labels, ", ") + ".\n\n")
	sb.WriteString(persona)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("When user asks to play a song you made set response text to %q (mode should still be one of the above).\n\n", SongSentinel))
	sb.WriteString("<OUTPUT_FORMAT>\nMODE: <mode>\n\nresponse text\n</OUTPUT_FORMAT>")
	return sb.String()
}
