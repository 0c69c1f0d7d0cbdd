package mcp

import (
	"context"
	"encoding/json"
	"log"
	"slices"

	"github.com/Trust-Square/luma-mcp-server/internal/jsonrpc"
	"github.com/Trust-Square/luma-mcp-server/internal/modules"
	"github.com/Trust-Square/luma-mcp-server/internal/observability"
)

// DefaultServerInfo identifies this server in initialize responses.
var DefaultServerInfo = ServerInfo{
	Name:    "luma-mcp-server",
	Version: "1.0.0",
}

const instructions = "Tools for managing Lu.ma calendars: configure calendar profiles, " +
	"browse events and guests, update events and export guest lists to CSV. " +
	"Every event and guest tool accepts an optional profile argument."

type Handler struct {
	registry *modules.Registry
	info     ServerInfo
}

func NewHandler(registry *modules.Registry, info ServerInfo) *Handler {
	return &Handler{
		registry: registry,
		info:     info,
	}
}

// ProcessRequest routes a JSON-RPC request to the appropriate handler.
// Called by the transport. Results of notifications are discarded by the
// caller.
func (h *Handler) ProcessRequest(ctx context.Context, req *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
	switch req.Method {
	case "initialize":
		return h.handleInitialize(req)
	case "notifications/initialized", "initialized", "notifications/cancelled":
		return nil, nil
	case "ping":
		return PingResult{}, nil
	case "tools/list":
		return h.handleToolsList(), nil
	case "tools/call":
		return h.handleToolCall(ctx, req)
	default:
		return nil, jsonrpc.NewError(jsonrpc.MethodNotFound, "Method not found: %s", req.Method)
	}
}

func (h *Handler) handleInitialize(req *jsonrpc.Request) (*InitializeResult, *jsonrpc.Error) {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, &jsonrpc.Error{Code: jsonrpc.InvalidParams, Message: "Invalid params structure"}
		}
	}
	if params.ClientInfo.Name != "" {
		log.Printf("[mcp] initialize from %s %s (protocol %s)", params.ClientInfo.Name, params.ClientInfo.Version, params.ProtocolVersion)
	}

	return &InitializeResult{
		ProtocolVersion: negotiateVersion(params.ProtocolVersion),
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{},
		},
		ServerInfo:   h.info,
		Instructions: instructions,
	}, nil
}

// negotiateVersion echoes the client's version when supported and answers
// with the newest supported version otherwise.
func negotiateVersion(requested string) string {
	if slices.Contains(supportedProtocolVersions, requested) {
		return requested
	}
	return supportedProtocolVersions[0]
}

func (h *Handler) handleToolsList() *ToolsListResult {
	return &ToolsListResult{Tools: h.registry.Tools()}
}

func (h *Handler) handleToolCall(ctx context.Context, req *jsonrpc.Request) (*modules.ToolCallResult, *jsonrpc.Error) {
	if len(req.Params) == 0 {
		return nil, &jsonrpc.Error{Code: jsonrpc.InvalidParams, Message: "Invalid params"}
	}

	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.InvalidParams, Message: "Invalid params structure"}
	}
	if params.Name == "" {
		return nil, &jsonrpc.Error{Code: jsonrpc.InvalidParams, Message: "name is required"}
	}
	if params.Arguments == nil {
		params.Arguments = make(map[string]any)
	}

	ctx = observability.WithRequestID(ctx, observability.NewRequestID())
	result, err := h.registry.Run(ctx, params.Name, params.Arguments)
	if err != nil {
		return nil, jsonrpc.FromError(err)
	}
	return result, nil
}
