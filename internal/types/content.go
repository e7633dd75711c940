// Package types provides shared types for content blocks and tool results.
package types

import "strings"

// ContentBlock represents a single block of content in a tool result.
type ContentBlock struct {
	Type string `json:"type"` // "text" or "image"

	// Text content
	Text string `json:"text,omitempty"`

	// Image content
	Data     string `json:"data,omitempty"`     // Base64 data
	MimeType string `json:"mimeType,omitempty"` // e.g., "image/png"

	// Source tracking
	Source string `json:"source,omitempty"` // "browser", etc.
}

// ToolResult represents the structured result from a tool execution.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"is_error,omitempty"`

	// ErrorKind classifies failures: invalid_parameters, external_service
	// or execution. Empty on success.
	ErrorKind string `json:"error_kind,omitempty"`

	// Untrusted marks content that came from outside (page text, markup,
	// script values) and must not be followed as instructions.
	Untrusted bool `json:"untrusted,omitempty"`

	// Payload is the structured, action-specific result.
	Payload map[string]any `json:"payload,omitempty"`

	// Raw keeps the untruncated text when Content was shortened.
	Raw string `json:"-"`
}

// TextResult creates a ToolResult with a single text block.
func TextResult(text string) *ToolResult {
	return &ToolResult{
		Content: []ContentBlock{
			{Type: "text", Text: text},
		},
	}
}

// ErrorResult creates a ToolResult with an error message.
func ErrorResult(kind, msg string) *ToolResult {
	return &ToolResult{
		Content: []ContentBlock{
			{Type: "text", Text: msg},
		},
		IsError:   true,
		ErrorKind: kind,
	}
}

// TextBlock creates a text ContentBlock.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// ImageBlock creates an inline image ContentBlock.
func ImageBlock(data, mimeType, source string) ContentBlock {
	return ContentBlock{
		Type:     "image",
		Data:     data,
		MimeType: mimeType,
		Source:   source,
	}
}

// GetText returns the concatenated text from all text blocks.
func (r *ToolResult) GetText() string {
	if r == nil {
		return ""
	}
	var parts []string
	for _, block := range r.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// RawText returns Raw when set, otherwise the visible text.
func (r *ToolResult) RawText() string {
	if r != nil && r.Raw != "" {
		return r.Raw
	}
	return r.GetText()
}

// HasMedia returns true if the result contains any image blocks.
func (r *ToolResult) HasMedia() bool {
	if r == nil {
		return false
	}
	for _, block := range r.Content {
		if block.Type == "image" {
			return true
		}
	}
	return false
}
