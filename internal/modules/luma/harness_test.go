package luma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Trust-Square/luma-mcp-server/internal/broker"
	"github.com/Trust-Square/luma-mcp-server/internal/db"
	"github.com/Trust-Square/luma-mcp-server/internal/jsonrpc"
	"github.com/Trust-Square/luma-mcp-server/internal/modules"
	"github.com/Trust-Square/luma-mcp-server/pkg/lumaapi"
)

// fakeLuma is an in-memory Lu.ma API. Events keep insertion order; lists
// are served pageSize entries at a time with "c<offset>" cursors.
type fakeLuma struct {
	mu         sync.Mutex
	pageSize   int
	badKeys    map[string]bool
	eventIDs   []string
	events     map[string]map[string]any
	guests     map[string][]map[string]any
	failGuests map[string]bool
	failList   bool
	updates    []map[string]any
	calls      []string
}

func newFakeLuma() *fakeLuma {
	return &fakeLuma{
		pageSize:   2,
		badKeys:    make(map[string]bool),
		events:     make(map[string]map[string]any),
		guests:     make(map[string][]map[string]any),
		failGuests: make(map[string]bool),
	}
}

func (f *fakeLuma) addEvent(e map[string]any, guests ...map[string]any) {
	id := e["api_id"].(string)
	f.eventIDs = append(f.eventIDs, id)
	f.events[id] = e
	f.guests[id] = guests
}

func (f *fakeLuma) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == path {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func page[T any](items []T, r *http.Request, pageSize int) map[string]any {
	offset := 0
	if c := r.URL.Query().Get("pagination_cursor"); c != "" {
		offset, _ = strconv.Atoi(strings.TrimPrefix(c, "c"))
	}
	size := pageSize
	if l, err := strconv.Atoi(r.URL.Query().Get("pagination_limit")); err == nil && l < size {
		size = l
	}
	end := min(offset+size, len(items))
	out := map[string]any{
		"entries":  items[offset:end],
		"has_more": end < len(items),
	}
	if end < len(items) {
		out["next_cursor"] = fmt.Sprintf("c%d", end)
	}
	return out
}

func (f *fakeLuma) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.URL.Path)

	if f.badKeys[r.Header.Get(lumaapi.APIKeyHeader)] {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	q := r.URL.Query()

	switch r.URL.Path {
	case "/cal/calendar/list-events":
		if f.failList {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		entries := make([]map[string]any, 0, len(f.eventIDs))
		for _, id := range f.eventIDs {
			entries = append(entries, map[string]any{"api_id": id, "event": f.events[id]})
		}
		writeJSON(w, http.StatusOK, page(entries, r, f.pageSize))
	case "/event/get":
		e, ok := f.events[q.Get("api_id")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"event": e})
	case "/event/get-guests":
		id := q.Get("event_api_id")
		if f.failGuests[id] {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		entries := make([]map[string]any, 0, len(f.guests[id]))
		for _, g := range f.guests[id] {
			entries = append(entries, map[string]any{"api_id": g["api_id"], "guest": g})
		}
		writeJSON(w, http.StatusOK, page(entries, r, f.pageSize))
	case "/event/get-guest":
		for _, g := range f.guests[q.Get("event_api_id")] {
			if g["api_id"] == q.Get("guest_api_id") || g["email"] == q.Get("email") {
				writeJSON(w, http.StatusOK, map[string]any{"guest": g})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{})
	case "/cal/event/update":
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.updates = append(f.updates, body)
		e, ok := f.events[body["api_id"].(string)]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{})
			return
		}
		for k, v := range body {
			e[k] = v
		}
		writeJSON(w, http.StatusOK, map[string]any{"event": e})
	default:
		http.NotFound(w, r)
	}
}

// seed loads three events: an in-person launch party with two guests, an
// online webinar and a hybrid meetup with one guest.
func (f *fakeLuma) seed() {
	f.addEvent(map[string]any{
		"api_id":     "evt-1",
		"name":       "Launch Party",
		"start_at":   "2025-07-01T18:00:00Z",
		"end_at":     "2025-07-01T21:00:00Z",
		"timezone":   "Europe/Berlin",
		"visibility": "public",
		"url":        "https://lu.ma/launch",
		"geo_address_json": map[string]any{
			"city":         "Berlin",
			"full_address": "Alexanderplatz 1, Berlin",
			"country":      "Germany",
		},
	},
		map[string]any{
			"api_id":          "gst-1",
			"name":            "Ada Lovelace",
			"email":           "ada@example.com",
			"approval_status": "approved",
			"user_first_name": "Ada",
			"user_last_name":  "Lovelace",
			"registered_at":   "2025-06-01T10:00:00Z",
			"registration_answers": []any{
				map[string]any{"label": "Company", "answer": "Acme", "question_type": "company"},
				map[string]any{"label": "Dietary", "answer": "Vegan", "question_type": "text"},
			},
			"event_ticket": map[string]any{"name": "VIP", "amount": 25, "currency": "usd"},
		},
		map[string]any{
			"api_id": "gst-2",
			"name":   "Grace Hopper",
			"email":  "grace@example.com",
			"registration_answers": []any{
				map[string]any{"label": "Company", "answer": "Navy", "question_type": "company"},
			},
		},
	)
	f.addEvent(map[string]any{
		"api_id":            "evt-2",
		"name":              "Webinar",
		"start_at":          "2025-05-01T15:00:00Z",
		"duration_interval": "P0Y0M1DT11H0M0S",
		"timezone":          "UTC",
		"visibility":        "private",
		"meeting_url":       "https://zoom.example/webinar",
	})
	f.addEvent(map[string]any{
		"api_id":      "evt-3",
		"name":        "Meetup",
		"start_at":    "2025-06-10T17:00:00Z",
		"end_at":      "2025-06-10T19:00:00Z",
		"meeting_url": "https://meet.example/meetup",
		"geo_address_json": map[string]any{
			"city": "Lisbon",
		},
	},
		map[string]any{
			"api_id":          "gst-3",
			"name":            "Alan Turing",
			"email":           "alan@example.com",
			"approval_status": "declined",
			"registration_answers": []any{
				map[string]any{"label": "T-Shirt Size", "answer": "M", "question_type": "dropdown"},
			},
		},
	)
}

type harness struct {
	api      *fakeLuma
	session  *broker.Session
	module   *Module
	registry *modules.Registry
	dir      string
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// newHarness builds a module over a file-backed store seeded with the
// given profile names; each profile's key is "key-<name>".
func newHarness(t *testing.T, profiles ...string) *harness {
	t.Helper()
	api := newFakeLuma()
	api.seed()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	store := broker.NewProfileStore(db.NewFileRepository(filepath.Join(dir, "config", "calendars.json")))
	require.NoError(t, store.Load(context.Background()))
	for _, name := range profiles {
		_, err := store.Upsert(context.Background(), broker.Profile{Name: name, APIKey: "key-" + name}, false)
		require.NoError(t, err)
	}

	session := broker.NewSession(store, func(apiKey string) (*lumaapi.Client, error) {
		return lumaapi.NewClient(apiKey,
			lumaapi.WithBaseURL(srv.URL),
			lumaapi.WithCalendarBaseURL(srv.URL+"/cal"))
	})
	m := New(session,
		WithExportDir(filepath.Join(dir, "exports")),
		WithClock(func() time.Time { return testNow }))
	registry := modules.NewRegistry(5 * time.Second)
	require.NoError(t, registry.Register(m))

	return &harness{api: api, session: session, module: m, registry: registry, dir: dir}
}

// call runs a tool through the registry and returns its text.
func (h *harness) call(t *testing.T, tool string, params map[string]any) string {
	t.Helper()
	res, err := h.registry.Run(context.Background(), tool, params)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	return res.Content[0].Text
}

// callErr runs a tool that must fail and returns the JSON-RPC error.
func (h *harness) callErr(t *testing.T, tool string, params map[string]any) *jsonrpc.Error {
	t.Helper()
	_, err := h.registry.Run(context.Background(), tool, params)
	var rpcErr *jsonrpc.Error
	require.ErrorAs(t, err, &rpcErr)
	return rpcErr
}

func TestToolDefinitionsHaveHandlers(t *testing.T) {
	profileTools := map[string]bool{
		"configure_profile": true,
		"list_profiles":     true,
		"switch_profile":    true,
		"remove_profile":    true,
	}
	assert.Len(t, toolDefinitions, 13)
	assert.Len(t, toolHandlers, len(toolDefinitions))
	for _, tool := range toolDefinitions {
		t.Run(tool.Name, func(t *testing.T) {
			_, ok := toolHandlers[tool.Name]
			assert.True(t, ok, "missing handler")
			assert.NotNil(t, tool.Annotations)
			assert.Equal(t, "object", tool.InputSchema.Type)
			_, hasProfile := tool.InputSchema.Properties["profile"]
			assert.Equal(t, !profileTools[tool.Name], hasProfile)
			for _, req := range tool.InputSchema.Required {
				assert.Contains(t, tool.InputSchema.Properties, req)
			}
		})
	}
}
