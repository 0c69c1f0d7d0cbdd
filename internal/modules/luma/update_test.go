package luma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Trust-Square/luma-mcp-server/pkg/lumaapi"
)

func TestUpdateEventRequiresApproval(t *testing.T) {
	h := newHarness(t, "work")

	out := h.call(t, "update_event", map[string]any{
		"api_id":     "evt-1",
		"name":       "Launch Party 2",
		"visibility": "private",
	})
	assert.Contains(t, out, "**Update Event: Launch Party**")
	assert.Contains(t, out, "Proposed changes:\n- Name: \"Launch Party\" → \"Launch Party 2\"\n- Visibility: public → private")
	assert.Contains(t, out, "**No changes have been made yet.**")
	assert.Contains(t, out, "`require_approval: false`")
	assert.Zero(t, h.api.callCount("/cal/event/update"))
	assert.Empty(t, h.api.updates)
}

func TestUpdateEventNoChanges(t *testing.T) {
	h := newHarness(t, "work")

	for _, approval := range []bool{true, false} {
		out := h.call(t, "update_event", map[string]any{
			"api_id":           "evt-1",
			"name":             "Launch Party",
			"start_at":         "2025-07-01T20:00:00+02:00",
			"timezone":         "Europe/Berlin",
			"event_type":       "in_person",
			"require_approval": approval,
		})
		assert.Equal(t, noChanges, out)
	}
	assert.Zero(t, h.api.callCount("/cal/event/update"))
}

func TestUpdateEventApply(t *testing.T) {
	h := newHarness(t, "work")

	out := h.call(t, "update_event", map[string]any{
		"api_id":           "evt-1",
		"name":             "Launch Party 2",
		"geo_address_json": map[string]any{"city": "Hamburg"},
		"require_approval": false,
	})
	assert.Contains(t, out, "✅ **Event Updated Successfully!**")
	assert.Contains(t, out, "Applied changes:\n- Name: \"Launch Party\" → \"Launch Party 2\"\n- Location updated")
	assert.Contains(t, out, "- Event ID: evt-1\n- Name: Launch Party 2")

	require.Len(t, h.api.updates, 1)
	assert.Equal(t, map[string]any{
		"api_id":           "evt-1",
		"name":             "Launch Party 2",
		"geo_address_json": map[string]any{"city": "Hamburg"},
	}, h.api.updates[0])
}

func TestUpdateEventUpstreamFailure(t *testing.T) {
	h := newHarness(t, "work")
	h.api.badKeys["key-work"] = true

	err := h.callErr(t, "update_event", map[string]any{"api_id": "evt-1", "name": "x", "require_approval": false})
	assert.Contains(t, err.Message, "Unauthorized")
	assert.Zero(t, h.api.callCount("/cal/event/update"))
}

func TestDiffEvent(t *testing.T) {
	cur := &lumaapi.Event{
		APIID:       "evt-1",
		Name:        "Launch",
		Description: "Old description",
		StartAt:     "2025-07-01T18:00:00Z",
		Timezone:    "UTC",
		MeetingURL:  "https://meet.example/a",
		CoverURL:    "https://img.example/a.png",
	}

	tests := []struct {
		name   string
		params map[string]any
		want   []string
	}{
		{
			name:   "empty request",
			params: map[string]any{"api_id": "evt-1"},
			want:   nil,
		},
		{
			name:   "blank name is ignored",
			params: map[string]any{"name": ""},
			want:   nil,
		},
		{
			name:   "description cleared",
			params: map[string]any{"description": ""},
			want:   []string{`- Description: "Old description" → (empty)`},
		},
		{
			name:   "long description preview",
			params: map[string]any{"description": "0123456789012345678901234567890123456789012345678901234"},
			want:   []string{`- Description: "Old description" → "01234567890123456789012345678901234567890123456789..."`},
		},
		{
			name:   "start in new timezone",
			params: map[string]any{"start_at": "2025-07-01T19:00:00Z", "timezone": "Europe/Berlin"},
			want: []string{
				"- Start: Jul 1, 2025, 6:00 PM UTC → Jul 1, 2025, 9:00 PM CEST",
				"- Timezone: UTC → Europe/Berlin",
			},
		},
		{
			name:   "end added",
			params: map[string]any{"end_at": "2025-07-01T20:00:00Z"},
			want:   []string{"- End: Not set → Jul 1, 2025, 8:00 PM UTC"},
		},
		{
			name:   "type compared with classification",
			params: map[string]any{"event_type": "online"},
			want:   nil,
		},
		{
			name:   "type change",
			params: map[string]any{"event_type": "hybrid"},
			want:   []string{"- Type: online → hybrid"},
		},
		{
			name:   "meeting url removed",
			params: map[string]any{"meeting_url": ""},
			want:   []string{"- Meeting URL: https://meet.example/a → Not set"},
		},
		{
			name:   "fields outside the core diff",
			params: map[string]any{"cover_url": "https://img.example/b.png", "geo_latitude": "52.52", "zoom_meeting_url": "https://zoom.example/x"},
			want: []string{
				"- Zoom Meeting URL: Not set → https://zoom.example/x",
				"- Latitude: Not set → 52.52",
				"- Cover Image: https://img.example/a.png → https://img.example/b.png",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.params["api_id"] = "evt-1"
			assert.Equal(t, tt.want, diffEvent(cur, updateRequest(tt.params)))
		})
	}
}
