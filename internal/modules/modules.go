package modules

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/Trust-Square/luma-mcp-server/internal/jsonrpc"
	"github.com/Trust-Square/luma-mcp-server/internal/observability"
)

// DefaultToolTimeout is the maximum duration for a single tool execution.
const DefaultToolTimeout = 120 * time.Second

// =============================================================================
// Registry
// =============================================================================

type registered struct {
	module Module
	tool   Tool
}

// Registry holds the modules served by one process and executes their tools.
type Registry struct {
	timeout time.Duration
	tools   []Tool
	byName  map[string]registered
}

// NewRegistry creates an empty registry. A non-positive timeout falls back
// to DefaultToolTimeout.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &Registry{
		timeout: timeout,
		byName:  make(map[string]registered),
	}
}

// Register adds every tool of m. Tool names are global across modules.
func (r *Registry) Register(m Module) error {
	for _, t := range m.Tools() {
		if prev, ok := r.byName[t.Name]; ok {
			return errors.Errorf("tool %q of module %q already registered by %q", t.Name, m.Name(), prev.module.Name())
		}
	}
	for _, t := range m.Tools() {
		r.byName[t.Name] = registered{module: m, tool: t}
		r.tools = append(r.tools, t)
	}
	return nil
}

// Tools returns all tool definitions in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Lookup returns the definition of a tool.
func (r *Registry) Lookup(name string) (Tool, bool) {
	e, ok := r.byName[name]
	return e.tool, ok
}

// =============================================================================
// Call info
// =============================================================================

type callInfoKey struct{}

type callInfo struct {
	profile string
}

// SetProfile records the calendar profile a tool call ran against, for logging.
func SetProfile(ctx context.Context, name string) {
	if ci, ok := ctx.Value(callInfoKey{}).(*callInfo); ok {
		ci.profile = name
	}
}

// =============================================================================
// Tool Execution
// =============================================================================

// Run validates params and executes a tool. Failures are returned as
// *jsonrpc.Error so the caller can answer with a structured JSON-RPC error.
func (r *Registry) Run(ctx context.Context, toolName string, params map[string]any) (*ToolCallResult, error) {
	start := time.Now()

	e, ok := r.byName[toolName]
	if !ok {
		return nil, jsonrpc.NewError(jsonrpc.MethodNotFound, "Unknown tool: %s", toolName)
	}

	requestID := observability.RequestID(ctx)
	if requestID == "" {
		requestID = observability.NewRequestID()
		ctx = observability.WithRequestID(ctx, requestID)
	}
	ci := &callInfo{}
	ctx = context.WithValue(ctx, callInfoKey{}, ci)

	validated, err := ValidateParams(e.tool.InputSchema, params)
	if err != nil {
		rpcErr := jsonrpc.FromError(err)
		observability.LogToolCall(ctx, requestID, ci.profile, toolName, time.Since(start).Milliseconds(), "error", rpcErr.Message)
		return nil, rpcErr
	}

	// Apply timeout to prevent external API calls from hanging indefinitely
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := e.module.ExecuteTool(ctx, toolName, validated)
	durationMs := time.Since(start).Milliseconds()

	if err != nil {
		rpcErr := jsonrpc.FromError(err)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			rpcErr = jsonrpc.NewError(jsonrpc.InternalError,
				"Request to %s timed out after %s. The external service did not respond in time.", e.module.Name(), r.timeout)
		}
		observability.LogToolCall(ctx, requestID, ci.profile, toolName, durationMs, "error", rpcErr.Message)
		return nil, rpcErr
	}

	observability.LogToolCall(ctx, requestID, ci.profile, toolName, durationMs, "success", "")
	return TextResult(result), nil
}
