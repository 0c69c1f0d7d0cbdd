package modules

import "context"

// =============================================================================
// Module Interface
// =============================================================================

// Module defines the interface that all tool modules implement.
type Module interface {
	Name() string
	Description() string

	// Tools - LLM executes, may have side effects
	Tools() []Tool
	ExecuteTool(ctx context.Context, name string, params map[string]any) (string, error)
}

// =============================================================================
// Tool Definition
// =============================================================================

// ToolAnnotations describes the tool's behavior hints per MCP spec (2025-06-18).
type ToolAnnotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    *bool  `json:"readOnlyHint,omitempty"`
	DestructiveHint *bool  `json:"destructiveHint,omitempty"`
	IdempotentHint  *bool  `json:"idempotentHint,omitempty"`
	OpenWorldHint   *bool  `json:"openWorldHint,omitempty"`
}

// Helper to create *bool for annotation fields
func boolPtr(v bool) *bool { return &v }

// Pre-built annotation sets for common tool patterns
var (
	// AnnotateReadOnly: list, get, summary tools against the remote API
	AnnotateReadOnly = &ToolAnnotations{
		ReadOnlyHint:  boolPtr(true),
		OpenWorldHint: boolPtr(true),
	}
	// AnnotateLocalReadOnly: tools that only read local state
	AnnotateLocalReadOnly = &ToolAnnotations{
		ReadOnlyHint:  boolPtr(true),
		OpenWorldHint: boolPtr(false),
	}
	// AnnotateLocalWrite: profile configuration and file export
	AnnotateLocalWrite = &ToolAnnotations{
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(false),
		IdempotentHint:  boolPtr(true),
		OpenWorldHint:   boolPtr(false),
	}
	// AnnotateUpdate: remote update tools (idempotent write)
	AnnotateUpdate = &ToolAnnotations{
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(false),
		IdempotentHint:  boolPtr(true),
		OpenWorldHint:   boolPtr(true),
	}
	// AnnotateDelete: delete tools (destructive, idempotent)
	AnnotateDelete = &ToolAnnotations{
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(true),
		IdempotentHint:  boolPtr(true),
		OpenWorldHint:   boolPtr(false),
	}
)

// Tool represents an MCP tool definition
type Tool struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	InputSchema InputSchema      `json:"inputSchema"`
	Annotations *ToolAnnotations `json:"annotations,omitempty"`
}

// InputSchema defines the input parameters for a tool
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a single property in the input schema
type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Minimum     *float64            `json:"minimum,omitempty"`
	Maximum     *float64            `json:"maximum,omitempty"`
	Default     any                 `json:"default,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
}

// Float returns a pointer for Minimum/Maximum.
func Float(v float64) *float64 { return &v }

// =============================================================================
// Result Types
// =============================================================================

// ToolCallResult represents the result of a tool call
type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock represents a content block in the result
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextResult wraps text in a single-block result.
func TextResult(text string) *ToolCallResult {
	return &ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}
