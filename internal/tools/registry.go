package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	. "github.com/roelfdiedericks/goclaw-browser/internal/logging"
	"github.com/roelfdiedericks/goclaw-browser/internal/types"
)

// ErrApprovalDenied is returned when the approver rejects a call.
var ErrApprovalDenied = errors.New("tool call was not approved")

// Approver decides whether a call to a tool that requires approval may run.
type Approver func(ctx context.Context, tool string, input json.RawMessage) (bool, error)

// Registry holds all registered tools
type Registry struct {
	tools    map[string]Tool
	approver Approver
	mu       sync.RWMutex
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// SetApprover installs the approval hook. Without one, tools that require
// approval are refused.
func (r *Registry) SetApprover(a Approver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approver = a
}

// Register adds a tool to the registry
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Execute runs a tool by name with the given input. Tools that require
// approval are passed through the approver first; results of tools with
// untrusted output are marked as such.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (*types.ToolResult, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	approver := r.approver
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}

	if RequiresApproval(tool) {
		if approver == nil {
			return nil, fmt.Errorf("%s: %w (no approver configured)", name, ErrApprovalDenied)
		}
		approved, err := approver(ctx, name, input)
		if err != nil {
			return nil, fmt.Errorf("%s: approval failed: %w", name, err)
		}
		if !approved {
			L_info("tools: call rejected by approver", "tool", name)
			return nil, fmt.Errorf("%s: %w", name, ErrApprovalDenied)
		}
	}

	result, err := tool.Execute(ctx, input)
	if result != nil && HasUntrustedOutput(tool) {
		result.Untrusted = true
	}
	return result, err
}

// List returns all registered tool names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns all tools in API format, sorted by name
func (r *Registry) Definitions() []types.ToolDefinition {
	names := r.List()

	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]types.ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, ToDefinition(r.tools[name]))
	}
	return defs
}

// Close releases every tool that holds resources (e.g. a browser process).
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, tool := range r.tools {
		if c, ok := tool.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
