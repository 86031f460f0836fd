package service

import (
	"context"
	"fmt"

	"github.com/agentchat/agentchat/internal/domain"
)

// LoadAgents refreshes the agent list from the runtime.
func (s *Service) LoadAgents(ctx context.Context) ([]domain.Agent, error) {
	agents, err := s.client.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load agents: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents = agents
	s.notifyLocked()
	return agents, nil
}

// Agents returns the cached agent list.
func (s *Service) Agents() []domain.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Agent, len(s.agents))
	copy(out, s.agents)
	return out
}

// SelectAgent makes the named agent current. Switching agents clears the
// conversation: session, transcript, usage and any active stream.
func (s *Service) SelectAgent(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *domain.Agent
	for i := range s.agents {
		if s.agents[i].Name == name {
			found = &s.agents[i]
			break
		}
	}
	if found == nil {
		return fmt.Errorf("agent %s not found", name)
	}

	s.stopLocked()
	agent := *found
	s.agent = &agent
	s.session = nil
	s.transcript.Clear()
	s.usage = domain.TokenUsage{}
	s.title = ""
	s.lastErr = ""
	s.notifyLocked()
	return nil
}

// AgentYAML fetches the raw YAML of an agent file.
func (s *Service) AgentYAML(ctx context.Context, id string) (string, error) {
	yamlText, err := s.client.GetAgentYAML(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to fetch agent yaml: %w", err)
	}
	return yamlText, nil
}

// SaveAgentYAML validates and stores raw YAML for an agent file.
func (s *Service) SaveAgentYAML(ctx context.Context, id, yamlContent string) (string, error) {
	stored, err := s.client.UpdateAgentYAML(ctx, id, yamlContent)
	if err != nil {
		return "", fmt.Errorf("failed to save agent yaml: %w", err)
	}
	return stored, nil
}

// CreateAgent creates a new agent file on the runtime and refreshes the
// agent list.
func (s *Service) CreateAgent(ctx context.Context, req *domain.CreateAgentRequest) (string, error) {
	filepath, err := s.client.CreateAgent(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create agent: %w", err)
	}
	if _, err := s.LoadAgents(ctx); err != nil {
		return filepath, err
	}
	return filepath, nil
}

// ImportAgent hands a staged file path to the runtime for import.
func (s *Service) ImportAgent(ctx context.Context, filePath string) (*domain.ImportAgentResponse, error) {
	resp, err := s.client.ImportAgent(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to import agent: %w", err)
	}
	if _, err := s.LoadAgents(ctx); err != nil {
		return resp, err
	}
	return resp, nil
}

// ExportAgents bundles all agents into an archive on the runtime host.
func (s *Service) ExportAgents(ctx context.Context) (*domain.ExportAgentsResponse, error) {
	resp, err := s.client.ExportAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export agents: %w", err)
	}
	return resp, nil
}

// PullAgent pulls an agent from a registry and refreshes the agent list.
func (s *Service) PullAgent(ctx context.Context, name string) (*domain.Agent, error) {
	agent, err := s.client.PullAgent(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to pull agent: %w", err)
	}
	if _, err := s.LoadAgents(ctx); err != nil {
		return agent, err
	}
	return agent, nil
}

// PushAgent pushes a local agent file to a registry.
func (s *Service) PushAgent(ctx context.Context, req *domain.PushAgentRequest) (*domain.PushAgentResponse, error) {
	resp, err := s.client.PushAgent(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to push agent: %w", err)
	}
	return resp, nil
}

// DeleteAgent removes an agent file and refreshes the agent list.
func (s *Service) DeleteAgent(ctx context.Context, filePath string) error {
	if err := s.client.DeleteAgent(ctx, filePath); err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	if _, err := s.LoadAgents(ctx); err != nil {
		return err
	}
	return nil
}
