// Package tools provides the tool execution framework.
package tools

import (
	"context"
	"encoding/json"

	"github.com/roelfdiedericks/goclaw-browser/internal/types"
)

// Tool is the interface that all tools must implement
type Tool interface {
	// Name returns the unique name of the tool
	Name() string

	// Description returns a human-readable description for the LLM
	Description() string

	// Schema returns the JSON Schema for the tool's input parameters
	Schema() map[string]any

	// Execute runs the tool with the given input
	Execute(ctx context.Context, input json.RawMessage) (*types.ToolResult, error)
}

// ApprovalRequirer is implemented by tools whose calls have side effects
// outside the host and must be confirmed by a human first.
type ApprovalRequirer interface {
	RequiresApproval() bool
}

// UntrustedOutputter is implemented by tools that return external content
// (web pages, script values). Such output is data, never instructions.
type UntrustedOutputter interface {
	UntrustedOutput() bool
}

// RequiresApproval reports whether t asks for human approval.
func RequiresApproval(t Tool) bool {
	a, ok := t.(ApprovalRequirer)
	return ok && a.RequiresApproval()
}

// HasUntrustedOutput reports whether t returns external content.
func HasUntrustedOutput(t Tool) bool {
	u, ok := t.(UntrustedOutputter)
	return ok && u.UntrustedOutput()
}

// ToDefinition converts a Tool to the API format
func ToDefinition(t Tool) types.ToolDefinition {
	return types.ToolDefinition{
		Name:             t.Name(),
		Description:      t.Description(),
		InputSchema:      t.Schema(),
		RequiresApproval: RequiresApproval(t),
	}
}
