package service

import (
	"context"
	"fmt"
	"log"

	"github.com/agentchat/agentchat/internal/adapter/cagent"
	"github.com/agentchat/agentchat/internal/domain"
)

// SendMessage appends the user's message to the transcript and starts a
// streamed execution turn. Starting a new turn while one is active is
// corrective: the old stream is cancelled first.
func (s *Service) SendMessage(ctx context.Context, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.agent == nil {
		return fmt.Errorf("no session or agent selected")
	}

	if s.stream != nil {
		s.stream.Cancel()
		s.stream = nil
	}

	s.transcript.Append(domain.Message{Role: domain.RoleUser, Content: content})
	// Placeholder the first assistant chunk will fill in.
	s.transcript.Append(domain.Message{Role: domain.RoleAssistant})

	s.startStreamLocked(ctx, content)
	s.notifyLocked()
	return nil
}

// StopStreaming cancels the active stream, if any, and returns the
// conversation to idle. Safe to call when nothing is streaming.
func (s *Service) StopStreaming() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.notifyLocked()
}

func (s *Service) stopLocked() {
	if s.stream != nil {
		s.stream.Cancel()
		s.stream = nil
	}
	s.loading = false
	s.pending = domain.Pending{Kind: domain.PendingNone}
	s.expectContinuation = false
	s.persistLocked()
}

// startStreamLocked opens the transport stream for one turn. An empty
// content resumes a suspended turn without sending a new user message.
func (s *Service) startStreamLocked(ctx context.Context, content string) {
	s.loading = true
	s.lastErr = ""
	s.stopped = false

	sessionID := s.session.ID
	agentName := s.agent.Name
	req := &domain.ExecuteAgentRequest{Content: content}

	var stream *cagent.Stream
	stream = s.client.ExecuteAgent(ctx, sessionID, agentName, "", req, cagent.StreamCallbacks{
		OnEvent:    func(ev domain.StreamEvent) { s.handleEvent(stream, ev) },
		OnError:    func(err error) { s.handleStreamError(stream, err) },
		OnComplete: func() { s.handleStreamComplete(stream) },
	})
	s.stream = stream
}

// handleEvent interprets one decoded event against the current state.
// Each case is independently guarded so one surprising event cannot
// corrupt the rest of the turn.
func (s *Service) handleEvent(from *cagent.Stream, ev domain.StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Events from a cancelled or superseded stream are dropped.
	if s.stream != from && !s.stopped {
		return
	}
	if s.eventSink != nil {
		s.eventSink(ev)
	}

	switch e := ev.(type) {
	case *domain.ReasoningChunk:
		if e.Content != "" {
			s.transcript.AppendToLatestSegment(domain.SegmentReasoning, e.Content, e.AgentName)
		}

	case *domain.AnswerChunk:
		if e.Content != "" {
			s.transcript.AppendToLatestSegment(domain.SegmentFinal, e.Content, e.AgentName)
		}

	case *domain.PartialToolCall:
		s.handlePartialToolCallLocked(e)

	case *domain.ToolConfirmation:
		s.handleToolConfirmationLocked(e)

	case *domain.ToolResponse:
		if e.Response != "" {
			msg := domain.Message{
				Role:      domain.RoleTool,
				Content:   e.Response,
				ToolCall:  e.ToolCall,
				AgentName: e.AgentName,
			}
			if e.ToolCall != nil {
				msg.ToolName = e.ToolCall.Function.Name
			}
			s.transcript.Append(msg)
		}

	case *domain.StreamStopped:
		s.stopped = true
		s.loading = false
		s.stream = nil
		s.pending = domain.Pending{Kind: domain.PendingNone}
		s.expectContinuation = false
		s.persistLocked()

	case *domain.TokenUsage:
		s.usage.InputTokens += e.InputTokens
		s.usage.OutputTokens += e.OutputTokens
		s.usage.ContextLength = e.ContextLength
		s.transcript.StampTokens(domain.TokenDelta{Input: e.InputTokens, Output: e.OutputTokens})
		if s.stopped {
			s.loading = false
		}

	case *domain.SessionTitle:
		if e.Title != "" {
			s.title = e.Title
			if s.session != nil {
				s.session.Title = e.Title
				for i := range s.sessions {
					if s.sessions[i].ID == s.session.ID {
						s.sessions[i].Title = e.Title
					}
				}
			}
		}
		if s.stopped {
			s.loading = false
		}

	case *domain.Elicitation:
		if req, ok := e.OAuthConsent(); ok {
			s.pending = domain.Pending{Kind: domain.PendingOAuthConsent, OAuth: req}
		} else {
			log.Printf("WARN: ignoring unsupported elicitation: %v", e.Meta)
		}

	case *domain.IgnoredEvent:
		log.Printf("INFO: ignoring stream event type %q", e.RawType)
	}

	s.notifyLocked()
}

// handlePartialToolCallLocked is the compatibility branch for runtimes
// that skip the explicit confirmation event: a progress report for a tool
// that needs approval, with no approval pending yet, is treated as the
// approval request. This is a heuristic, not a guaranteed signal.
func (s *Service) handlePartialToolCallLocked(e *domain.PartialToolCall) {
	if e.ToolCall == nil || e.ToolCall.Function.Name == "" {
		return
	}
	if s.session != nil && s.session.ToolsApproved {
		return
	}
	if !s.pending.None() {
		return
	}
	if !s.policy.RequiresApproval(context.Background(), e.ToolCall.Function.Name) {
		return
	}
	log.Printf("INFO: detected approval request via tool call progress for %s", e.ToolCall.Function.Name)
	s.pending = domain.Pending{Kind: domain.PendingToolApproval, ToolCall: e.ToolCall}
}

func (s *Service) handleToolConfirmationLocked(e *domain.ToolConfirmation) {
	if e.ToolCall == nil {
		log.Printf("WARN: tool confirmation without tool call payload")
		return
	}
	if s.session == nil || s.session.ToolsApproved {
		// Blanket approval resolves server-side; no prompt.
		return
	}
	// Internal control tools resolve without a prompt as well.
	if !s.policy.RequiresApproval(context.Background(), e.ToolCall.Function.Name) {
		sessionID := s.session.ID
		go func() {
			if err := s.client.ResumeSession(context.Background(), sessionID, cagent.ConfirmationApprove); err != nil {
				log.Printf("ERROR: failed to auto-approve tool: %v", err)
			}
		}()
		return
	}
	s.pending = domain.Pending{Kind: domain.PendingToolApproval, ToolCall: e.ToolCall}
}

func (s *Service) handleStreamError(from *cagent.Stream, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != from {
		return
	}
	log.Printf("ERROR: stream failed: %v", err)
	s.stopLocked()
	s.setErrorLocked("communication with the agent runtime failed")
}

// handleStreamComplete fires when the transport ends. If an approval is
// still pending the logical turn is suspended, not finished: loading
// stays on and resolving the approval opens a fresh transport stream. If
// an approval was already resolved while this transport was draining, the
// turn likewise continues on a fresh stream.
func (s *Service) handleStreamComplete(from *cagent.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != from {
		return
	}
	switch {
	case !s.pending.None():
		s.stream = nil
		s.loading = true
	case s.expectContinuation:
		s.expectContinuation = false
		s.startStreamLocked(context.Background(), "")
	default:
		s.stopLocked()
	}
	s.notifyLocked()
}

// persistLocked mirrors the session and transcript into the local
// archive. Best effort: archive failures never disturb the conversation.
func (s *Service) persistLocked() {
	if s.archive == nil || s.session == nil {
		return
	}
	ctx := context.Background()
	rec := s.sessionRecordLocked()
	if err := s.archive.UpsertSession(ctx, rec); err != nil {
		log.Printf("ERROR: failed to archive session: %v", err)
		return
	}
	if err := s.archive.SaveMessages(ctx, s.session.ID, s.transcript.Messages()); err != nil {
		log.Printf("ERROR: failed to archive transcript: %v", err)
	}
}
