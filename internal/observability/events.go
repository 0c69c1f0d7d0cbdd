package observability

import (
	"context"
	"fmt"
	"log"
)

// LogToolCall records one tool execution: a stderr line, a Loki entry and
// the tool-call metrics.
func LogToolCall(ctx context.Context, requestID, profile, tool string, durationMs int64, status string, errMsg string) {
	level := "info"
	if status == "error" {
		level = "error"
	}
	if errMsg != "" {
		log.Printf("[tool] %s profile=%s status=%s duration=%dms request=%s error=%q", tool, profile, status, durationMs, requestID, errMsg)
	} else {
		log.Printf("[tool] %s profile=%s status=%s duration=%dms request=%s", tool, profile, status, durationMs, requestID)
	}

	recordToolCall(ctx, tool, status, durationMs)

	data := map[string]any{
		"request_id":  requestID,
		"profile":     profile,
		"tool":        tool,
		"duration_ms": durationMs,
		"status":      status,
	}
	if errMsg != "" {
		data["error"] = errMsg
	}
	Push(map[string]string{
		"type":   "tool_call",
		"tool":   tool,
		"status": status,
		"level":  level,
	}, data)
}

// LogRequest records one JSON-RPC message.
func LogRequest(method string, code int, durationMs int64) {
	Push(map[string]string{
		"type":   "request",
		"method": method,
		"level":  "info",
	}, map[string]any{
		"method":      method,
		"code":        code,
		"duration_ms": durationMs,
	})
}

// LogError records an unexpected failure such as a recovered panic.
func LogError(where string, err error) {
	log.Printf("[error] %s: %v", where, err)
	Push(map[string]string{
		"type":  "error",
		"level": "error",
	}, map[string]any{
		"context": where,
		"error":   fmt.Sprintf("%v", err),
	})
}

// LogProfileEvent records a credential store change. API keys are never logged.
func LogProfileEvent(requestID, event, profile string, details map[string]any) {
	data := map[string]any{
		"request_id": requestID,
		"event":      event,
		"profile":    profile,
	}
	for k, v := range details {
		data[k] = v
	}
	Push(map[string]string{
		"type":  "profile",
		"level": "warn",
	}, data)
}
