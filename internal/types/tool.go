package types

// ToolDefinition is the format required by LLM APIs for tool/function calling.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`

	// RequiresApproval asks the host to confirm each call with a human
	// before it runs.
	RequiresApproval bool `json:"requires_approval,omitempty"`
}
