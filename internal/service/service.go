// Package service implements the client-side conversation state machine.
// It owns the live transcript, at most one active execution stream, and
// the pending-interaction state (tool approval, OAuth consent), and keeps
// all of it consistent under streaming, cancellation and error.
package service

import (
	"sync"

	"github.com/agentchat/agentchat/internal/adapter/cagent"
	"github.com/agentchat/agentchat/internal/archive"
	"github.com/agentchat/agentchat/internal/config"
	"github.com/agentchat/agentchat/internal/domain"
	"github.com/agentchat/agentchat/internal/policy"
	"github.com/agentchat/agentchat/internal/transcript"
)

// Snapshot is a point-in-time copy of the observable conversation state.
type Snapshot struct {
	SessionID string            `json:"session_id,omitempty"`
	AgentName string            `json:"agent_name,omitempty"`
	Title     string            `json:"title,omitempty"`
	Messages  []domain.Message  `json:"messages"`
	Loading   bool              `json:"loading"`
	Pending   domain.Pending    `json:"pending"`
	Usage     domain.TokenUsage `json:"usage"`
	LastError string            `json:"last_error,omitempty"`
}

// Notifier receives a snapshot after every state change. Implementations
// must not call back into the Service.
type Notifier interface {
	StateChanged(snap Snapshot)
}

// EventSink observes raw decoded stream events, for renderers that want
// deltas rather than snapshots. Called from the stream goroutine.
type EventSink func(ev domain.StreamEvent)

// Service is the conversation state machine. All exported methods are
// safe for concurrent use.
type Service struct {
	client  *cagent.Client
	archive *archive.Archive
	policy  *policy.Engine
	cfg     *config.Config

	mu         sync.Mutex
	transcript *transcript.Transcript
	agents     []domain.Agent
	sessions   []domain.Session
	session    *domain.Session
	agent      *domain.Agent
	stream     *cagent.Stream
	pending    domain.Pending
	loading    bool
	lastErr    string
	usage      domain.TokenUsage
	title      string
	// set when stream_stopped arrives so trailing usage/title events do
	// not resurrect the loading indicator
	stopped bool
	// set when an approval was resolved while the transport was still
	// open; if that transport then ends, the turn continues on a fresh
	// stream instead of going idle
	expectContinuation bool

	notifier  Notifier
	eventSink EventSink
}

// New creates the service. The archive may be nil to disable local
// transcript persistence.
func New(client *cagent.Client, arch *archive.Archive, policyEngine *policy.Engine, cfg *config.Config) *Service {
	return &Service{
		client:     client,
		archive:    arch,
		policy:     policyEngine,
		cfg:        cfg,
		transcript: transcript.New(),
		pending:    domain.Pending{Kind: domain.PendingNone},
	}
}

// SetNotifier registers the snapshot sink. Call before starting streams.
func (s *Service) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// SetEventSink registers the raw event sink. Call before starting streams.
func (s *Service) SetEventSink(sink EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventSink = sink
}

// Snapshot returns a copy of the current observable state.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Messages returns a copy of the live transcript.
func (s *Service) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Messages()
}

// Loading reports whether a logical turn is in progress.
func (s *Service) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Pending returns the current pending interaction, if any.
func (s *Service) Pending() domain.Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// LastError returns the last recoverable error message, empty when none.
func (s *Service) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearError dismisses the last error.
func (s *Service) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = ""
	s.notifyLocked()
}

// Usage returns the accumulated token usage for the current session.
func (s *Service) Usage() domain.TokenUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// Title returns the server-assigned session title, if any.
func (s *Service) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// CurrentSession returns the selected session, or nil.
func (s *Service) CurrentSession() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	copied := *s.session
	return &copied
}

// CurrentAgent returns the selected agent, or nil.
func (s *Service) CurrentAgent() *domain.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agent == nil {
		return nil
	}
	copied := *s.agent
	return &copied
}

func (s *Service) snapshotLocked() Snapshot {
	snap := Snapshot{
		Title:     s.title,
		Messages:  s.transcript.Messages(),
		Loading:   s.loading,
		Pending:   s.pending,
		Usage:     s.usage,
		LastError: s.lastErr,
	}
	if s.session != nil {
		snap.SessionID = s.session.ID
	}
	if s.agent != nil {
		snap.AgentName = s.agent.Name
	}
	return snap
}

func (s *Service) notifyLocked() {
	if s.notifier != nil {
		s.notifier.StateChanged(s.snapshotLocked())
	}
}

func (s *Service) setErrorLocked(msg string) {
	s.lastErr = msg
	s.notifyLocked()
}
