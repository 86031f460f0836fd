// Package domain defines the core domain models for the chat client.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// SegmentKind distinguishes intermediate reasoning text from answer text
// within an assistant turn.
type SegmentKind string

const (
	SegmentReasoning SegmentKind = "reasoning"
	SegmentFinal     SegmentKind = "final"
)

// ContentPart is one typed slice of an assistant message's text.
type ContentPart struct {
	Kind SegmentKind `json:"kind"`
	Text string      `json:"text"`
}

// TokenDelta is the token usage attributed to a single message.
type TokenDelta struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// ToolCallFunction describes the function half of a tool call.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall describes a tool invocation the agent wants to perform.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// Message is one turn in the transcript.
//
// Content always equals the in-order concatenation of ContentParts texts
// whenever ContentParts is non-empty, so renderers that ignore segmentation
// still see the full text.
type Message struct {
	ID           string        `json:"id"`
	Role         Role          `json:"role"`
	Content      string        `json:"content"`
	ContentParts []ContentPart `json:"content_parts,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
	AgentName    string        `json:"agent_name,omitempty"`
	ToolName     string        `json:"tool_name,omitempty"`
	ToolCall     *ToolCall     `json:"tool_call,omitempty"`
	Tokens       *TokenDelta   `json:"tokens,omitempty"`
}

// NewMessageID returns a fresh message identifier.
func NewMessageID() string {
	return "msg_" + uuid.New().String()[:8]
}

// Flatten recomputes Content from ContentParts. It is a no-op for messages
// without parts.
func (m *Message) Flatten() {
	if len(m.ContentParts) == 0 {
		return
	}
	var b strings.Builder
	for _, p := range m.ContentParts {
		b.WriteString(p.Text)
	}
	m.Content = b.String()
}
