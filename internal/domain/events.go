package domain

import "encoding/json"

// Event type discriminators used on the execution stream.
const (
	EventTypeReasoning        = "agent_choice_reasoning"
	EventTypeChoice           = "agent_choice"
	EventTypePartialToolCall  = "partial_tool_call"
	EventTypeToolConfirmation = "tool_call_confirmation"
	EventTypeToolResponse     = "tool_call_response"
	EventTypeStreamStarted    = "stream_started"
	EventTypeStreamStopped    = "stream_stopped"
	EventTypeTokenUsage       = "token_usage"
	EventTypeSessionTitle     = "session_title"
	EventTypeElicitation      = "elicitation_request"
	EventTypeUserMessage      = "user_message"
)

// StreamEvent is one decoded event from the execution stream. Exactly one
// concrete type below implements it per wire discriminator; payloads the
// client does not recognize decode to IgnoredEvent rather than an error.
type StreamEvent interface {
	streamEvent()
}

// ReasoningChunk is a slice of the agent's intermediate thinking text.
type ReasoningChunk struct {
	Content   string
	AgentName string
}

// AnswerChunk is a slice of the agent's final answer text.
type AnswerChunk struct {
	Content   string
	AgentName string
}

// PartialToolCall reports tool-call progress. It doubles as a fallback
// approval signal for runtimes that skip the explicit confirmation event.
type PartialToolCall struct {
	ToolCall  *ToolCall
	AgentName string
}

// ToolConfirmation asks the client to confirm a tool call before it runs.
type ToolConfirmation struct {
	ToolCall *ToolCall
}

// ToolResponse carries the result of a completed tool call.
type ToolResponse struct {
	ToolCall  *ToolCall
	Response  string
	AgentName string
}

// StreamStopped marks the server-side end of the turn.
type StreamStopped struct{}

// TokenUsage is a usage delta for the current turn.
type TokenUsage struct {
	InputTokens   int
	OutputTokens  int
	ContextLength int
}

// SessionTitle announces a server-generated session title.
type SessionTitle struct {
	Title string
}

// Elicitation is a structured request for user input. Only OAuth consent
// requests are currently acted on; Meta carries the discriminating keys.
type Elicitation struct {
	Message string
	Meta    map[string]any
}

// OAuthConsent extracts the consent request if this elicitation is one,
// reporting ok=false for any other elicitation kind.
func (e *Elicitation) OAuthConsent() (*OAuthRequest, bool) {
	if e.Meta == nil {
		return nil, false
	}
	kind, _ := e.Meta["cagent/type"].(string)
	if kind != "oauth_consent" {
		return nil, false
	}
	serverURL, _ := e.Meta["cagent/server_url"].(string)
	return &OAuthRequest{ServerURL: serverURL, Message: e.Message}, true
}

// IgnoredEvent is any recognized-but-inert or unknown event. RawType keeps
// the wire discriminator for logging.
type IgnoredEvent struct {
	RawType string
}

func (ReasoningChunk) streamEvent()   {}
func (AnswerChunk) streamEvent()      {}
func (PartialToolCall) streamEvent()  {}
func (ToolConfirmation) streamEvent() {}
func (ToolResponse) streamEvent()     {}
func (StreamStopped) streamEvent()    {}
func (TokenUsage) streamEvent()       {}
func (SessionTitle) streamEvent()     {}
func (Elicitation) streamEvent()      {}
func (IgnoredEvent) streamEvent()     {}

// wireEvent is the loosely-typed envelope the runtime emits.
type wireEvent struct {
	Type      string         `json:"type"`
	Content   string         `json:"content,omitempty"`
	AgentName string         `json:"agent_name,omitempty"`
	ToolCall  *ToolCall      `json:"tool_call,omitempty"`
	Response  string         `json:"response,omitempty"`
	Usage     *wireUsage     `json:"usage,omitempty"`
	Title     string         `json:"title,omitempty"`
	Message   string         `json:"message,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

type wireUsage struct {
	InputTokens   int `json:"input_tokens"`
	OutputTokens  int `json:"output_tokens"`
	ContextLength int `json:"context_length,omitempty"`
}

// DecodeStreamEvent decodes one `data:` payload into its typed variant.
// Malformed JSON is the only error; unknown discriminators come back as
// IgnoredEvent so a single odd event never aborts the stream.
func DecodeStreamEvent(data []byte) (StreamEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}

	switch w.Type {
	case EventTypeReasoning:
		return &ReasoningChunk{Content: w.Content, AgentName: w.AgentName}, nil
	case EventTypeChoice:
		return &AnswerChunk{Content: w.Content, AgentName: w.AgentName}, nil
	case EventTypePartialToolCall:
		return &PartialToolCall{ToolCall: w.ToolCall, AgentName: w.AgentName}, nil
	case EventTypeToolConfirmation:
		return &ToolConfirmation{ToolCall: w.ToolCall}, nil
	case EventTypeToolResponse:
		return &ToolResponse{ToolCall: w.ToolCall, Response: w.Response, AgentName: w.AgentName}, nil
	case EventTypeStreamStopped:
		return &StreamStopped{}, nil
	case EventTypeTokenUsage:
		if w.Usage == nil {
			return &IgnoredEvent{RawType: w.Type}, nil
		}
		return &TokenUsage{
			InputTokens:   w.Usage.InputTokens,
			OutputTokens:  w.Usage.OutputTokens,
			ContextLength: w.Usage.ContextLength,
		}, nil
	case EventTypeSessionTitle:
		return &SessionTitle{Title: w.Title}, nil
	case EventTypeElicitation:
		return &Elicitation{Message: w.Message, Meta: w.Meta}, nil
	default:
		// user_message and stream_started are expected but carry nothing
		// the client acts on; everything else is future wire surface.
		return &IgnoredEvent{RawType: w.Type}, nil
	}
}
