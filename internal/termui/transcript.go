package termui

import (
	"fmt"

	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

const pendingMarker = "•••"

// FormatMessage renders one transcript line, e.g. "[14:05] Tutor: Hello".
// Pending replies carry a trailing marker.
func FormatMessage(m voicechat.Message) string {
	who := "Tutor"
	if m.IsUser {
		who = "You"
	}
	line := fmt.Sprintf("[%s] %s: %s", m.Timestamp.Local().Format("15:04"), who, m.Text)
	if m.IsPending {
		line += " " + pendingMarker
	}
	return line
}

// FormatTranscript renders the last max messages, oldest first. max <= 0
// renders all of them.
func FormatTranscript(msgs []voicechat.Message, max int) []string {
	if max > 0 && len(msgs) > max {
		msgs = msgs[len(msgs)-max:]
	}
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = FormatMessage(m)
	}
	return out
}
