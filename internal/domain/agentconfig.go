package domain

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// AgentConfig is a full agent definition file as stored by the runtime.
// The same struct serializes to JSON for the update API and to YAML for
// the raw editor surface.
type AgentConfig struct {
	Version string                     `json:"version" yaml:"version"`
	Agents  map[string]AgentDefinition `json:"agents" yaml:"agents"`
	Models  map[string]ModelConfig     `json:"models,omitempty" yaml:"models,omitempty"`
}

// AgentDefinition configures one agent within a config file.
type AgentDefinition struct {
	Model       string          `json:"model" yaml:"model"`
	Description string          `json:"description" yaml:"description"`
	Instruction string          `json:"instruction" yaml:"instruction"`
	SubAgents   []string        `json:"sub_agents,omitempty" yaml:"sub_agents,omitempty"`
	Toolsets    []ToolsetConfig `json:"toolsets,omitempty" yaml:"toolsets,omitempty"`
}

// ModelConfig configures one named model reference.
type ModelConfig struct {
	Provider     string         `json:"provider" yaml:"provider"`
	Model        string         `json:"model" yaml:"model"`
	MaxTokens    int            `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	BaseURL      string         `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	ProviderOpts map[string]any `json:"provider_opts,omitempty" yaml:"provider_opts,omitempty"`
}

// ToolsetConfig configures one toolset attached to an agent.
type ToolsetConfig struct {
	Type      string   `json:"type" yaml:"type"`
	Ref       string   `json:"ref,omitempty" yaml:"ref,omitempty"`
	Command   string   `json:"command,omitempty" yaml:"command,omitempty"`
	Args      []string `json:"args,omitempty" yaml:"args,omitempty"`
	Tools     []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	Env       []string `json:"env,omitempty" yaml:"env,omitempty"`
	Transport string   `json:"transport,omitempty" yaml:"transport,omitempty"`
	URL       string   `json:"url,omitempty" yaml:"url,omitempty"`
	Path      string   `json:"path,omitempty" yaml:"path,omitempty"`
}

// ParseAgentConfig parses raw agent YAML and validates the fields the
// runtime requires, so syntax and shape errors surface before a save
// round-trips through the server.
func ParseAgentConfig(raw []byte) (*AgentConfig, error) {
	var cfg AgentConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse agent yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the runtime rejects when missing.
func (c *AgentConfig) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("agent config has no agents")
	}
	for name, def := range c.Agents {
		if def.Model == "" {
			return fmt.Errorf("agent %q has no model", name)
		}
		for _, sub := range def.SubAgents {
			if _, ok := c.Agents[sub]; !ok {
				return fmt.Errorf("agent %q references unknown sub-agent %q", name, sub)
			}
		}
		for i, ts := range def.Toolsets {
			if ts.Type == "" {
				return fmt.Errorf("agent %q toolset %d has no type", name, i)
			}
		}
	}
	for name, m := range c.Models {
		if m.Provider == "" || m.Model == "" {
			return fmt.Errorf("model %q missing provider or model", name)
		}
	}
	return nil
}

// EncodeYAML renders the config back to its file form.
func (c *AgentConfig) EncodeYAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal agent yaml: %w", err)
	}
	return out, nil
}
