package session

import (
	"strings"

	"github.com/aura-voice/aura-relay/pkg/core/providers/gemini"
)

// historyLog is the session-owned conversation record handed to the
// upstream model on every request. It lives and dies with the session
// and is never persisted.
type historyLog struct {
	turns []gemini.Turn
}

func newHistoryLog(systemPrompt, systemAck string) *historyLog {
	h := &historyLog{turns: make([]gemini.Turn, 0, 16)}
	h.turns = append(h.turns,
		gemini.Turn{Role: gemini.RoleUser, Text: systemPrompt},
		gemini.Turn{Role: gemini.RoleModel, Text: systemAck},
	)
	return h
}

func (h *historyLog) appendUser(text string) {
	h.turns = append(h.turns, gemini.Turn{Role: gemini.RoleUser, Text: text})
}

// appendModel records the model's reply, trimmed. Blank replies are
// dropped, so a failed cycle leaves its user turn unanswered.
func (h *historyLog) appendModel(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	h.turns = append(h.turns, gemini.Turn{Role: gemini.RoleModel, Text: text})
}

func (h *historyLog) snapshot() []gemini.Turn {
	out := make([]gemini.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}
