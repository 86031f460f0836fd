// Package policy decides whether a streamed tool call needs explicit human
// approval. Internal control tools the runtime uses to coordinate agents
// are auto-approved; everything else pauses the turn for the user.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by the approval policy.
const (
	DecisionAutoApprove     = "auto_approve"
	DecisionRequireApproval = "require_approval"
)

// Engine evaluates the tool approval policy.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_approval.decision"),
		rego.Module("tool_approval.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewEngineFromFile compiles a policy from disk, falling back to the
// default policy when path is empty.
func NewEngineFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return NewEngine(ctx, string(content))
}

// Decide evaluates the policy for one tool call.
func (e *Engine) Decide(ctx context.Context, toolName string) (string, error) {
	input := map[string]any{"tool_name": toolName}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionRequireApproval, nil
	}
	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return DecisionRequireApproval, nil
}

// RequiresApproval reports whether the tool call must pause for the user.
// Evaluation errors fail closed.
func (e *Engine) RequiresApproval(ctx context.Context, toolName string) bool {
	decision, err := e.Decide(ctx, toolName)
	if err != nil {
		return true
	}
	return decision != DecisionAutoApprove
}

// DefaultPolicy auto-approves the runtime's internal control tools, which
// never touch anything outside the conversation itself.
const DefaultPolicy = `
package tool_approval

default decision = "require_approval"

decision = "auto_approve" {
	input.tool_name == "transfer_task"
}

decision = "auto_approve" {
	input.tool_name == "create_todos"
}
`
