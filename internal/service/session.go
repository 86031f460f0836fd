package service

import (
	"context"
	"fmt"
	"time"

	"github.com/agentchat/agentchat/internal/archive"
	"github.com/agentchat/agentchat/internal/domain"
)

// LoadSessions refreshes the session list from the runtime.
func (s *Service) LoadSessions(ctx context.Context) ([]domain.Session, error) {
	sessions, err := s.client.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = sessions
	s.notifyLocked()
	return sessions, nil
}

// Sessions returns the cached session list.
func (s *Service) Sessions() []domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// NewSession creates a session on the runtime and selects it, clearing
// the transcript.
func (s *Service) NewSession(ctx context.Context, req *domain.CreateSessionRequest) (*domain.Session, error) {
	session, err := s.client.CreateSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.session = session
	s.sessions = append([]domain.Session{*session}, s.sessions...)
	s.transcript.Clear()
	s.usage = domain.TokenUsage{}
	s.title = session.Title
	s.lastErr = ""
	s.persistLocked()
	s.notifyLocked()
	return session, nil
}

// SelectSession fetches the session's stored history and makes it the
// active conversation. Any running stream is cancelled first.
func (s *Service) SelectSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.client.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.session = session
	s.transcript.Clear()
	s.hydrateHistoryLocked(session)
	s.usage = domain.TokenUsage{
		InputTokens:  session.InputTokens,
		OutputTokens: session.OutputTokens,
	}
	s.title = session.Title
	s.lastErr = ""
	s.notifyLocked()
	return session, nil
}

// DeleteSession removes a session from the runtime and the local archive.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.client.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if s.archive != nil {
		if err := s.archive.DeleteSession(ctx, sessionID); err != nil {
			return fmt.Errorf("failed to delete archived session: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sessions {
		if s.sessions[i].ID == sessionID {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			break
		}
	}
	if s.session != nil && s.session.ID == sessionID {
		s.stopLocked()
		s.session = nil
		s.transcript.Clear()
		s.usage = domain.TokenUsage{}
		s.title = ""
	}
	s.notifyLocked()
	return nil
}

// ArchivedSessions lists locally archived sessions, newest first.
func (s *Service) ArchivedSessions(ctx context.Context) ([]archive.SessionRecord, error) {
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.ListSessions(ctx)
}

// ArchivedMessages returns the locally archived transcript of a session.
func (s *Service) ArchivedMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.GetMessages(ctx, sessionID)
}

// hydrateHistoryLocked converts stored server history into transcript
// messages.
func (s *Service) hydrateHistoryLocked(session *domain.Session) {
	for _, item := range session.Messages {
		if item.Message == nil {
			continue
		}
		hm := item.Message
		msg := domain.Message{
			Role:      domain.Role(hm.Role),
			Content:   hm.Content,
			AgentName: item.AgentName,
		}
		if hm.ReasoningContent != "" {
			msg.ContentParts = []domain.ContentPart{
				{Kind: domain.SegmentReasoning, Text: hm.ReasoningContent},
				{Kind: domain.SegmentFinal, Text: hm.Content},
			}
		}
		if hm.CreatedAt != "" {
			if ts, err := time.Parse(time.RFC3339, hm.CreatedAt); err == nil {
				msg.Timestamp = ts
			}
		}
		s.transcript.Append(msg)
	}
}

func (s *Service) sessionRecordLocked() *archive.SessionRecord {
	rec := &archive.SessionRecord{
		ID:            s.session.ID,
		Title:         s.session.Title,
		ToolsApproved: s.session.ToolsApproved,
		InputTokens:   s.usage.InputTokens,
		OutputTokens:  s.usage.OutputTokens,
		CreatedAt:     s.session.CreatedAt,
	}
	if s.agent != nil {
		rec.AgentName = s.agent.Name
	}
	return rec
}
