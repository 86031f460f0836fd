package domain

import (
	"encoding/json"
	"time"
)

// Agent is one entry in the agent list exposed by the runtime.
type Agent struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Multi       bool   `json:"multi"`
}

// Session is a conversation thread bound to one agent.
//
// Messages holds the authoritative history fetched from the server on a
// detail request; it is distinct from the live transcript being streamed.
type Session struct {
	ID            string        `json:"id"`
	Title         string        `json:"title,omitempty"`
	CreatedAt     time.Time     `json:"created_at,omitzero"`
	NumMessages   int           `json:"num_messages,omitempty"`
	InputTokens   int           `json:"input_tokens,omitempty"`
	OutputTokens  int           `json:"output_tokens,omitempty"`
	ToolsApproved bool          `json:"tools_approved,omitempty"`
	WorkingDir    string        `json:"working_dir,omitempty"`
	Messages      []HistoryItem `json:"messages,omitempty"`
}

// HistoryItem is one element of a session's server-side history. Older
// runtimes inline the message fields on the item itself instead of nesting
// them under "message"; UnmarshalJSON accepts both shapes.
type HistoryItem struct {
	AgentName     string          `json:"agentName,omitempty"`
	AgentFilename string          `json:"agentFilename,omitempty"`
	Message       *HistoryMessage `json:"message,omitempty"`
}

// HistoryMessage is the wire shape of one stored message.
type HistoryMessage struct {
	Role             string `json:"role"`
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
	Name             string `json:"name,omitempty"`
	ToolCallID       string `json:"tool_call_id,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
}

// UnmarshalJSON accepts both the nested and the flat history shapes.
func (h *HistoryItem) UnmarshalJSON(data []byte) error {
	type alias HistoryItem
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Message == nil {
		var flat HistoryMessage
		if err := json.Unmarshal(data, &flat); err != nil {
			return err
		}
		if flat.Role != "" {
			a.Message = &flat
		}
	}
	*h = HistoryItem(a)
	return nil
}

// CreateSessionRequest creates a new session.
type CreateSessionRequest struct {
	MaxIterations int    `json:"maxIterations,omitempty"`
	WorkingDir    string `json:"workingDir,omitempty"`
	ToolsApproved bool   `json:"tools_approved,omitempty"`
}

// CreateAgentRequest creates a new single-agent definition.
type CreateAgentRequest struct {
	Filename    string `json:"filename"`
	Model       string `json:"model"`
	Description string `json:"description"`
	Instruction string `json:"instruction"`
}

// UpdateAgentRequest replaces a stored agent configuration.
type UpdateAgentRequest struct {
	Filename    string      `json:"filename"`
	AgentConfig AgentConfig `json:"agent_config"`
}

// ImportAgentRequest asks the runtime to import an agent file previously
// staged through the upload relay.
type ImportAgentRequest struct {
	FilePath string `json:"file_path"`
}

// ImportAgentResponse reports where the imported agent landed.
type ImportAgentResponse struct {
	OriginalPath string `json:"originalPath"`
	TargetPath   string `json:"targetPath"`
	Description  string `json:"description"`
}

// ExportAgentsResponse reports the archive produced by an export.
type ExportAgentsResponse struct {
	ZipPath      string `json:"zipPath"`
	ZipFile      string `json:"zipFile"`
	ZipDirectory string `json:"zipDirectory"`
	AgentsDir    string `json:"agentsDir"`
	CreatedAt    string `json:"createdAt"`
}

// PullAgentRequest pulls an agent from a registry by name.
type PullAgentRequest struct {
	Name string `json:"name"`
}

// PushAgentRequest pushes a local agent file to a registry.
type PushAgentRequest struct {
	Filepath string `json:"filepath"`
	Tag      string `json:"tag"`
}

// PushAgentResponse reports the pushed artifact.
type PushAgentResponse struct {
	Filepath string `json:"filepath"`
	Tag      string `json:"tag"`
	Digest   string `json:"digest"`
}

// ExecuteAgentRequest is the body of one streamed execution call.
type ExecuteAgentRequest struct {
	Content string `json:"content"`
}
