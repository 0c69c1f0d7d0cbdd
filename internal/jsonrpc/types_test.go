package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Trust-Square/luma-mcp-server/pkg/lumaapi"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		notification bool
		nullID       bool
	}{
		{"numeric id", `{"jsonrpc":"2.0","id":1,"method":"ping"}`, false, false},
		{"string id", `{"jsonrpc":"2.0","id":"a","method":"ping"}`, false, false},
		{"no id", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, true, false},
		{"null id", `{"jsonrpc":"2.0","id":null,"method":"ping"}`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &req))
			assert.Equal(t, tt.notification, req.IsNotification())
			assert.Equal(t, tt.nullID, req.HasNullID())
		})
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "typed error passes through",
			err:      errors.Wrap(NewError(InvalidParams, "bad %s", "limit"), "list events"),
			wantCode: InvalidParams,
			wantMsg:  "bad limit",
		},
		{
			name:     "invalid client arguments",
			err:      &lumaapi.Error{Kind: lumaapi.KindInvalidArguments, Msg: "guest_id or email is required"},
			wantCode: InvalidParams,
			wantMsg:  "guest_id or email is required",
		},
		{
			name:     "upstream failure keeps its message",
			err:      &lumaapi.Error{Kind: lumaapi.KindNotFound, Status: 404},
			wantCode: InternalError,
			wantMsg:  "Lu.ma API error: Not found: Event or resource does not exist",
		},
		{
			name:     "untyped error",
			err:      errors.New("disk full"),
			wantCode: InternalError,
			wantMsg:  "Tool execution failed: disk full",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantMsg, got.Message)
		})
	}
	assert.Nil(t, FromError(nil))
}
