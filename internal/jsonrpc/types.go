package jsonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/Trust-Square/luma-mcp-server/pkg/lumaapi"
)

// Request is a JSON-RPC 2.0 Request
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request has no id member and expects
// no response. An explicit "id": null is a request, not a notification.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// HasNullID reports whether the id member is present but null.
func (r *Request) HasNullID() bool {
	return string(r.ID) == "null"
}

// Response is a JSON-RPC 2.0 Response
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 Error.
// It doubles as the typed tool error: anything returned by a tool handler
// that is already an *Error reaches the client unchanged.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// JSON-RPC 2.0 standard error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// NewError builds an *Error with a formatted message.
func NewError(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// FromError converts any error into an *Error. It is the single place where
// untyped failures become InternalError. Luma client failures keep their own
// message; invalid arguments map to InvalidParams.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	var apiErr *lumaapi.Error
	if errors.As(err, &apiErr) {
		code := InternalError
		if apiErr.Kind == lumaapi.KindInvalidArguments {
			code = InvalidParams
		}
		return &Error{Code: code, Message: err.Error()}
	}
	return &Error{Code: InternalError, Message: "Tool execution failed: " + err.Error()}
}
