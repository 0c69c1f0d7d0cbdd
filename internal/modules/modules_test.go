package modules

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Trust-Square/luma-mcp-server/internal/jsonrpc"
	"github.com/Trust-Square/luma-mcp-server/pkg/lumaapi"
)

type fakeModule struct {
	name  string
	tools []Tool
	exec  func(ctx context.Context, name string, params map[string]any) (string, error)
}

func (m *fakeModule) Name() string        { return m.name }
func (m *fakeModule) Description() string { return m.name + " module" }
func (m *fakeModule) Tools() []Tool       { return m.tools }
func (m *fakeModule) ExecuteTool(ctx context.Context, name string, params map[string]any) (string, error) {
	return m.exec(ctx, name, params)
}

func newFake(exec func(ctx context.Context, name string, params map[string]any) (string, error)) *fakeModule {
	return &fakeModule{
		name: "fake",
		tools: []Tool{{
			Name: "echo",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"text": {Type: "string"},
				},
				Required: []string{"text"},
			},
		}},
		exec: exec,
	}
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry(0)
	require.NoError(t, r.Register(newFake(nil)))

	tools := r.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)

	_, ok := r.Lookup("echo")
	assert.True(t, ok)

	err := r.Register(&fakeModule{name: "other", tools: []Tool{{Name: "echo"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `tool "echo" of module "other" already registered by "fake"`)
	assert.Len(t, r.Tools(), 1)
}

func TestRegistryRun(t *testing.T) {
	tests := []struct {
		name     string
		tool     string
		params   map[string]any
		exec     func(ctx context.Context, name string, params map[string]any) (string, error)
		wantText string
		wantCode int
		wantMsg  string
	}{
		{
			name:   "success",
			tool:   "echo",
			params: map[string]any{"text": "hi"},
			exec: func(_ context.Context, _ string, params map[string]any) (string, error) {
				return "echo: " + String(params, "text"), nil
			},
			wantText: "echo: hi",
		},
		{
			name:     "unknown tool",
			tool:     "nope",
			wantCode: jsonrpc.MethodNotFound,
			wantMsg:  "Unknown tool: nope",
		},
		{
			name:     "validation failure",
			tool:     "echo",
			params:   map[string]any{},
			wantCode: jsonrpc.InvalidParams,
			wantMsg:  "missing required parameter(s): text",
		},
		{
			name:   "typed error passes through",
			tool:   "echo",
			params: map[string]any{"text": "hi"},
			exec: func(context.Context, string, map[string]any) (string, error) {
				return "", jsonrpc.NewError(jsonrpc.InvalidRequest, "No calendars configured.")
			},
			wantCode: jsonrpc.InvalidRequest,
			wantMsg:  "No calendars configured.",
		},
		{
			name:   "invalid client arguments map to InvalidParams",
			tool:   "echo",
			params: map[string]any{"text": "hi"},
			exec: func(context.Context, string, map[string]any) (string, error) {
				return "", errors.Wrap(&lumaapi.Error{Kind: lumaapi.KindInvalidArguments, Msg: "no guest identifier"}, "get guest")
			},
			wantCode: jsonrpc.InvalidParams,
			wantMsg:  "get guest: no guest identifier",
		},
		{
			name:   "untyped error is wrapped",
			tool:   "echo",
			params: map[string]any{"text": "hi"},
			exec: func(context.Context, string, map[string]any) (string, error) {
				return "", errors.New("disk full")
			},
			wantCode: jsonrpc.InternalError,
			wantMsg:  "Tool execution failed: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(time.Second)
			require.NoError(t, r.Register(newFake(tt.exec)))

			res, err := r.Run(context.Background(), tt.tool, tt.params)
			if tt.wantCode != 0 {
				var rpcErr *jsonrpc.Error
				require.ErrorAs(t, err, &rpcErr)
				assert.Equal(t, tt.wantCode, rpcErr.Code)
				assert.Equal(t, tt.wantMsg, rpcErr.Message)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			require.Len(t, res.Content, 1)
			assert.Equal(t, "text", res.Content[0].Type)
			assert.Equal(t, tt.wantText, res.Content[0].Text)
			assert.False(t, res.IsError)
		})
	}
}

func TestRegistryRunTimeout(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	require.NoError(t, r.Register(newFake(func(ctx context.Context, _ string, _ map[string]any) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})))

	_, err := r.Run(context.Background(), "echo", map[string]any{"text": "hi"})
	var rpcErr *jsonrpc.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, jsonrpc.InternalError, rpcErr.Code)
	assert.Equal(t, "Request to fake timed out after 20ms. The external service did not respond in time.", rpcErr.Message)
}

func TestSetProfileWithoutCallInfo(t *testing.T) {
	assert.NotPanics(t, func() { SetProfile(context.Background(), "work") })
}
