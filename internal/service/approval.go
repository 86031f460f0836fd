package service

import (
	"context"
	"fmt"
	"log"

	"github.com/agentchat/agentchat/internal/adapter/cagent"
	"github.com/agentchat/agentchat/internal/domain"
)

// ApproveTool approves the pending tool call for this invocation only.
// The server resumes the turn; no local transcript change happens here.
func (s *Service) ApproveTool(ctx context.Context) error {
	return s.resolveToolApproval(ctx, cagent.ConfirmationApprove, false)
}

// ApproveAllTools approves the pending tool call and every later one in
// this session, mirroring tools_approved locally so later confirmations
// auto-pass without a prompt.
func (s *Service) ApproveAllTools(ctx context.Context) error {
	return s.resolveToolApproval(ctx, cagent.ConfirmationApproveSession, true)
}

// DenyTool rejects the pending tool call. Denial terminates the turn: the
// stream is force-cancelled rather than resumed.
func (s *Service) DenyTool(ctx context.Context) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return fmt.Errorf("no session selected")
	}
	if s.pending.Kind != domain.PendingToolApproval {
		s.mu.Unlock()
		return fmt.Errorf("no tool approval pending")
	}
	sessionID := s.session.ID
	s.mu.Unlock()

	if err := s.client.ResumeSession(ctx, sessionID, cagent.ConfirmationReject); err != nil {
		// The turn still ends locally even if the reject call fails.
		log.Printf("ERROR: failed to reject tool call: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.lastErr = ""
	s.notifyLocked()
	return nil
}

func (s *Service) resolveToolApproval(ctx context.Context, confirmation string, approveAll bool) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return fmt.Errorf("no session selected")
	}
	if s.pending.Kind != domain.PendingToolApproval {
		s.mu.Unlock()
		return fmt.Errorf("no tool approval pending")
	}
	sessionID := s.session.ID
	s.mu.Unlock()

	if err := s.client.ResumeSession(ctx, sessionID, confirmation); err != nil {
		s.mu.Lock()
		s.setErrorLocked("failed to approve tool call")
		s.mu.Unlock()
		return fmt.Errorf("failed to resume session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = domain.Pending{Kind: domain.PendingNone}
	if approveAll && s.session != nil {
		s.session.ToolsApproved = true
		for i := range s.sessions {
			if s.sessions[i].ID == s.session.ID {
				s.sessions[i].ToolsApproved = true
			}
		}
	}
	s.resumeSuspendedTurnLocked(ctx)
	s.notifyLocked()
	return nil
}

// ApproveOAuth accepts the pending OAuth consent request.
func (s *Service) ApproveOAuth(ctx context.Context) error {
	return s.resolveOAuth(ctx, cagent.ElicitationAccept)
}

// DenyOAuth declines the pending OAuth consent request and ends the turn.
func (s *Service) DenyOAuth(ctx context.Context) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return fmt.Errorf("no session selected")
	}
	if s.pending.Kind != domain.PendingOAuthConsent {
		s.mu.Unlock()
		return fmt.Errorf("no oauth consent pending")
	}
	sessionID := s.session.ID
	s.mu.Unlock()

	if err := s.client.ResumeElicitation(ctx, sessionID, cagent.ElicitationDecline, nil); err != nil {
		log.Printf("ERROR: failed to decline oauth consent: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.notifyLocked()
	return nil
}

func (s *Service) resolveOAuth(ctx context.Context, action string) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return fmt.Errorf("no session selected")
	}
	if s.pending.Kind != domain.PendingOAuthConsent {
		s.mu.Unlock()
		return fmt.Errorf("no oauth consent pending")
	}
	sessionID := s.session.ID
	s.mu.Unlock()

	if err := s.client.ResumeElicitation(ctx, sessionID, action, nil); err != nil {
		s.mu.Lock()
		s.setErrorLocked("failed to answer oauth consent")
		s.mu.Unlock()
		return fmt.Errorf("failed to resume elicitation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = domain.Pending{Kind: domain.PendingNone}
	s.resumeSuspendedTurnLocked(ctx)
	s.notifyLocked()
	return nil
}

// resumeSuspendedTurnLocked reopens the transport when the previous
// stream ended while the approval was pending. The resume call has
// already unblocked the server; an empty-content execution reattaches to
// the continuing turn without adding a user message. When the old
// transport is still open, the reopen is deferred to its completion
// handler instead.
func (s *Service) resumeSuspendedTurnLocked(ctx context.Context) {
	if !s.loading {
		return
	}
	if s.stream != nil {
		s.expectContinuation = true
		return
	}
	log.Printf("INFO: reopening stream for suspended turn on session %s", s.session.ID)
	s.startStreamLocked(ctx, "")
}
