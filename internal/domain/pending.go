package domain

// PendingKind names the interaction the stream is paused on.
type PendingKind string

const (
	PendingNone         PendingKind = "none"
	PendingToolApproval PendingKind = "tool_approval"
	PendingOAuthConsent PendingKind = "oauth_consent"
)

// OAuthRequest carries an OAuth consent prompt raised by the runtime.
type OAuthRequest struct {
	ServerURL string `json:"server_url"`
	Message   string `json:"message"`
}

// Pending is the at-most-one interaction awaiting a human decision. While
// Kind != PendingNone the stream is logically paused: no further transcript
// mutation is expected until the interaction is resolved or cancelled.
type Pending struct {
	Kind     PendingKind   `json:"kind"`
	ToolCall *ToolCall     `json:"tool_call,omitempty"`
	OAuth    *OAuthRequest `json:"oauth,omitempty"`
}

// None reports whether no interaction is pending.
func (p Pending) None() bool { return p.Kind == PendingNone || p.Kind == "" }
