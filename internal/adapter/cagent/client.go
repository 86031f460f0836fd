// Package cagent provides the HTTP client for the remote agent runtime,
// including the long-lived execution stream.
package cagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentchat/agentchat/internal/domain"
)

const defaultTimeout = 5 * time.Minute

// Client talks to the agent runtime API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// streamClient carries no whole-request timeout: an execution stream
	// stays open as long as the turn runs, including approval pauses of
	// arbitrary length. The timeout only bounds the wait for response
	// headers; after that, cancellation flows through the request context.
	streamClient *http.Client
}

// NewClient creates a client for the given base URL, typically ending in
// "/api". A non-positive timeout falls back to the default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		streamClient: &http.Client{
			Transport: transport,
		},
	}
}

// Ping checks that the runtime is reachable.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	return c.doJSON(ctx, http.MethodGet, "/ping", nil, &out)
}

// ListAgents returns all agents known to the runtime.
func (c *Client) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	var agents []domain.Agent
	if err := c.doJSON(ctx, http.MethodGet, "/agents", nil, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// GetAgent returns the parsed configuration of one agent.
func (c *Client) GetAgent(ctx context.Context, id string) (*domain.AgentConfig, error) {
	var cfg domain.AgentConfig
	if err := c.doJSON(ctx, http.MethodGet, "/agents/"+url.PathEscape(id), nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetAgentYAML returns the raw YAML text of one agent file.
func (c *Client) GetAgentYAML(ctx context.Context, id string) (string, error) {
	return c.doText(ctx, http.MethodGet, "/agents/"+url.PathEscape(id)+"/yaml", "")
}

// UpdateAgentYAML stores raw YAML text for one agent and returns the text
// as the server stored it. The YAML is validated locally first so syntax
// errors never reach the server.
func (c *Client) UpdateAgentYAML(ctx context.Context, id, yamlContent string) (string, error) {
	if _, err := domain.ParseAgentConfig([]byte(yamlContent)); err != nil {
		return "", fmt.Errorf("invalid agent yaml: %w", err)
	}
	return c.doText(ctx, http.MethodPut, "/agents/"+url.PathEscape(id)+"/yaml", yamlContent)
}

// CreateAgent creates a new single-agent configuration file.
func (c *Client) CreateAgent(ctx context.Context, req *domain.CreateAgentRequest) (string, error) {
	var out struct {
		Filepath string `json:"filepath"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/agents/config", req, &out); err != nil {
		return "", err
	}
	return out.Filepath, nil
}

// UpdateAgent replaces a stored agent configuration.
func (c *Client) UpdateAgent(ctx context.Context, req *domain.UpdateAgentRequest) error {
	return c.doJSON(ctx, http.MethodPut, "/agents/config", req, nil)
}

// GenerateAgent asks the runtime to generate an agent file from a prompt.
func (c *Client) GenerateAgent(ctx context.Context, prompt string) (string, error) {
	body := map[string]string{"prompt": prompt}
	var out struct {
		Path string `json:"path"`
		Out  string `json:"out"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/agents", body, &out); err != nil {
		return "", err
	}
	return out.Path, nil
}

// ImportAgent imports a previously staged agent file by path.
func (c *Client) ImportAgent(ctx context.Context, filePath string) (*domain.ImportAgentResponse, error) {
	var out domain.ImportAgentResponse
	req := domain.ImportAgentRequest{FilePath: filePath}
	if err := c.doJSON(ctx, http.MethodPost, "/agents/import", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportAgents asks the runtime to bundle all agents into an archive.
func (c *Client) ExportAgents(ctx context.Context) (*domain.ExportAgentsResponse, error) {
	var out domain.ExportAgentsResponse
	if err := c.doJSON(ctx, http.MethodPost, "/agents/export", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PullAgent pulls an agent from a registry by name.
func (c *Client) PullAgent(ctx context.Context, name string) (*domain.Agent, error) {
	var out domain.Agent
	req := domain.PullAgentRequest{Name: name}
	if err := c.doJSON(ctx, http.MethodPost, "/agents/pull", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PushAgent pushes a local agent file to a registry.
func (c *Client) PushAgent(ctx context.Context, req *domain.PushAgentRequest) (*domain.PushAgentResponse, error) {
	var out domain.PushAgentResponse
	if err := c.doJSON(ctx, http.MethodPost, "/agents/push", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAgent removes an agent file by path.
func (c *Client) DeleteAgent(ctx context.Context, filePath string) error {
	body := map[string]string{"file_path": filePath}
	return c.doJSON(ctx, http.MethodDelete, "/agents", body, nil)
}

// ListSessions returns all sessions.
func (c *Client) ListSessions(ctx context.Context) ([]domain.Session, error) {
	var sessions []domain.Session
	if err := c.doJSON(ctx, http.MethodGet, "/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListSessionsByAgent returns the sessions bound to one agent.
func (c *Client) ListSessionsByAgent(ctx context.Context, agentID string) ([]domain.Session, error) {
	var sessions []domain.Session
	path := "/sessions/agent/" + url.PathEscape(agentID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession returns one session including its stored history.
func (c *Client) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var session domain.Session
	if err := c.doJSON(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CreateSession creates a new session.
func (c *Client) CreateSession(ctx context.Context, req *domain.CreateSessionRequest) (*domain.Session, error) {
	var session domain.Session
	if err := c.doJSON(ctx, http.MethodPost, "/sessions", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession removes a session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, nil)
}

// Confirmation values accepted by ResumeSession.
const (
	ConfirmationApprove        = "approve"
	ConfirmationApproveSession = "approve-session"
	ConfirmationReject         = "reject"
)

// ResumeSession answers a pending tool confirmation on a paused session.
func (c *Client) ResumeSession(ctx context.Context, id, confirmation string) error {
	body := map[string]string{"confirmation": confirmation}
	return c.doJSON(ctx, http.MethodPost, "/sessions/"+url.PathEscape(id)+"/resume", body, nil)
}

// Elicitation actions accepted by ResumeElicitation.
const (
	ElicitationAccept  = "accept"
	ElicitationDecline = "decline"
	ElicitationCancel  = "cancel"
)

// ResumeElicitation answers a pending elicitation, such as an OAuth
// consent prompt.
func (c *Client) ResumeElicitation(ctx context.Context, sessionID, action string, content map[string]any) error {
	if content == nil {
		content = map[string]any{}
	}
	body := map[string]any{"action": action, "content": content}
	path := "/sessions/" + url.PathEscape(sessionID) + "/elicitation"
	return c.doJSON(ctx, http.MethodPost, path, body, nil)
}

// GetDesktopToken fetches the desktop integration token.
func (c *Client) GetDesktopToken(ctx context.Context) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/desktop/token", nil, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// doJSON performs one JSON request/response round trip. A nil out skips
// response decoding.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// doText performs a round trip whose request and response bodies are raw
// text rather than JSON.
func (c *Client) doText(ctx context.Context, method, path, body string) (string, error) {
	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if body != "" {
		httpReq.Header.Set("Content-Type", "text/plain")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return string(respBody), nil
}
