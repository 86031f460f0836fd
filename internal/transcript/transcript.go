// Package transcript maintains the ordered message list for one live
// conversation, including the segment merge rules for streamed assistant
// text.
package transcript

import (
	"time"

	"github.com/agentchat/agentchat/internal/domain"
)

// Transcript is the in-memory message list for the active session. It is
// not safe for concurrent use; the owning service serializes access.
type Transcript struct {
	msgs []domain.Message
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// Len returns the number of messages.
func (t *Transcript) Len() int { return len(t.msgs) }

// Messages returns a copy of the message list, safe to hand to renderers.
func (t *Transcript) Messages() []domain.Message {
	out := make([]domain.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Latest returns a pointer to the last message, or nil when empty. The
// pointer stays valid only until the next mutation.
func (t *Transcript) Latest() *domain.Message {
	if len(t.msgs) == 0 {
		return nil
	}
	return &t.msgs[len(t.msgs)-1]
}

// Append adds a complete message to the end of the transcript.
func (t *Transcript) Append(msg domain.Message) {
	if msg.ID == "" {
		msg.ID = domain.NewMessageID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	msg.Flatten()
	t.msgs = append(t.msgs, msg)
}

// Clear drops all messages.
func (t *Transcript) Clear() {
	t.msgs = nil
}

// ReplaceLatest overwrites the last message in place. It is a no-op on an
// empty transcript.
func (t *Transcript) ReplaceLatest(msg domain.Message) {
	if len(t.msgs) == 0 {
		return
	}
	msg.Flatten()
	t.msgs[len(t.msgs)-1] = msg
}

// AppendToLatestText appends raw text to the last message's content,
// ignoring segmentation. It is a no-op on an empty transcript.
func (t *Transcript) AppendToLatestText(text string) {
	if len(t.msgs) == 0 {
		return
	}
	last := &t.msgs[len(t.msgs)-1]
	last.Content += text
}

// AppendToLatestSegment merges a streamed text chunk into the transcript.
//
// A new assistant message starts when the transcript is empty, when the
// last message is not an assistant message, when the last segment is
// reasoning and the chunk is final text, or when the chunk comes from a
// different agent than the last message. Otherwise the chunk extends the
// last segment if the kinds match, or opens a new segment on the same
// message. Content is always recomputed as the concatenation of segment
// texts.
func (t *Transcript) AppendToLatestSegment(kind domain.SegmentKind, text, agentName string) {
	last := t.Latest()

	startNew := last == nil || last.Role != domain.RoleAssistant
	if !startNew && len(last.ContentParts) > 0 {
		lastPart := last.ContentParts[len(last.ContentParts)-1]
		if lastPart.Kind == domain.SegmentReasoning && kind == domain.SegmentFinal {
			startNew = true
		}
	}
	if !startNew && agentName != "" && last.AgentName != "" && agentName != last.AgentName {
		startNew = true
	}

	if startNew {
		t.Append(domain.Message{
			Role:         domain.RoleAssistant,
			ContentParts: []domain.ContentPart{{Kind: kind, Text: text}},
			AgentName:    agentName,
		})
		return
	}

	parts := last.ContentParts
	if n := len(parts); n > 0 && parts[n-1].Kind == kind {
		parts[n-1].Text += text
	} else {
		parts = append(parts, domain.ContentPart{Kind: kind, Text: text})
	}
	last.ContentParts = parts
	if agentName != "" {
		last.AgentName = agentName
	}
	last.Flatten()
}

// StampTokens attributes a usage delta to the assistant message currently
// being streamed. The delta belongs to that message only while it is still
// the last entry; once something else (a tool result, say) has been
// appended the attribution is ambiguous and the stamp is skipped.
func (t *Transcript) StampTokens(delta domain.TokenDelta) {
	last := t.Latest()
	if last == nil || last.Role != domain.RoleAssistant {
		return
	}
	last.Tokens = &domain.TokenDelta{Input: delta.Input, Output: delta.Output}
}
