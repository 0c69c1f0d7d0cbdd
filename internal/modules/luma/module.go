package luma

import (
	"context"
	"fmt"
	"time"

	"github.com/Trust-Square/luma-mcp-server/internal/broker"
	"github.com/Trust-Square/luma-mcp-server/internal/modules"
	"github.com/Trust-Square/luma-mcp-server/pkg/lumaapi"
)

const (
	moduleName        = "luma"
	moduleDescription = "Lu.ma events: browse events, inspect guests, update event details and export guest lists across several calendars."
)

// Module implements modules.Module for Lu.ma.
type Module struct {
	session   *broker.Session
	exportDir string
	now       func() time.Time
}

// Option configures a Module.
type Option func(*Module)

// WithExportDir sets the directory export_guest_list writes into.
func WithExportDir(dir string) Option {
	return func(m *Module) { m.exportDir = dir }
}

// WithClock overrides the wall clock used for future-only filtering and
// export file names.
func WithClock(now func() time.Time) Option {
	return func(m *Module) { m.now = now }
}

// New creates the Lu.ma module over a calendar session.
func New(session *broker.Session, opts ...Option) *Module {
	m := &Module{
		session:   session,
		exportDir: "exports",
		now:       time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Name returns the module name
func (m *Module) Name() string {
	return moduleName
}

// Description returns the module description
func (m *Module) Description() string {
	return moduleDescription
}

// Tools returns all available tools
func (m *Module) Tools() []modules.Tool {
	return toolDefinitions
}

// ExecuteTool executes a tool by name and returns text
func (m *Module) ExecuteTool(ctx context.Context, name string, params map[string]any) (string, error) {
	handler, ok := toolHandlers[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return handler(m, ctx, params)
}

// client returns the API client of the profile named by the optional
// "profile" argument, or of the active profile.
func (m *Module) client(ctx context.Context, params map[string]any) (*lumaapi.Client, broker.Profile, error) {
	c, p, err := m.session.Client(modules.String(params, "profile"))
	if err != nil {
		return nil, broker.Profile{}, err
	}
	modules.SetProfile(ctx, p.Name)
	return c, p, nil
}

// =============================================================================
// Tool Definitions
// =============================================================================

// withProfile adds the optional profile selector every tool accepts.
func withProfile(props map[string]modules.Property) map[string]modules.Property {
	if props == nil {
		props = make(map[string]modules.Property, 1)
	}
	props["profile"] = modules.Property{
		Type:        "string",
		Description: "Calendar profile to use for this call only (defaults to the active profile)",
	}
	return props
}

var paginationLimit = modules.Property{
	Type:        "integer",
	Description: "Number of entries per page (1-100, default 50)",
	Minimum:     modules.Float(1),
	Maximum:     modules.Float(lumaapi.MaxPageSize),
}

var toolDefinitions = []modules.Tool{
	// Profiles
	{
		Name:        "configure_profile",
		Description: "Add or update a calendar profile (a named Lu.ma API key). The first profile becomes the default.",
		Annotations: modules.AnnotateLocalWrite,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"name":           {Type: "string", Description: "Profile name (e.g., 'work', 'community')"},
				"api_key":        {Type: "string", Description: "Lu.ma API key of the calendar"},
				"description":    {Type: "string", Description: "Optional note about this calendar"},
				"set_as_default": {Type: "boolean", Description: "Make this profile the default (default: false)", Default: false},
				"validate":       {Type: "boolean", Description: "Check the key against the Lu.ma API before saving (default: true)", Default: true},
			},
			Required: []string{"name", "api_key"},
		},
	},
	{
		Name:        "list_profiles",
		Description: "List configured calendar profiles, the default and the active one.",
		Annotations: modules.AnnotateLocalReadOnly,
		InputSchema: modules.InputSchema{
			Type:       "object",
			Properties: map[string]modules.Property{},
		},
	},
	{
		Name:        "switch_profile",
		Description: "Switch the active calendar profile for this session.",
		Annotations: modules.AnnotateLocalWrite,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"name": {Type: "string", Description: "Profile name to activate"},
			},
			Required: []string{"name"},
		},
	},
	{
		Name:        "remove_profile",
		Description: "Remove a calendar profile. Requires confirm: true.",
		Annotations: modules.AnnotateDelete,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: map[string]modules.Property{
				"name":    {Type: "string", Description: "Profile name to remove"},
				"confirm": {Type: "boolean", Description: "Must be true to actually remove the profile", Default: false},
			},
			Required: []string{"name"},
		},
	},

	// Events
	{
		Name:        "list_events",
		Description: "Browse Events - List your Lu.ma events with optional date filtering and pagination",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: withProfile(map[string]modules.Property{
				"pagination_cursor": {Type: "string", Description: "Continue from a previous page (leave empty for first page)"},
				"pagination_limit":  paginationLimit,
				"after":             {Type: "string", Description: "Show events starting after this date (e.g., '2025-06-01T00:00:00Z')"},
				"before":            {Type: "string", Description: "Show events starting before this date (e.g., '2025-12-31T23:59:59Z')"},
				"series_mode": {
					Type:        "string",
					Description: "How to handle recurring events",
					Enum:        []string{lumaapi.SeriesModeInstances, lumaapi.SeriesModeSeries},
				},
				"include_cancelled": {Type: "boolean", Description: "Include cancelled events in results (default: false)"},
			}),
		},
	},
	{
		Name:        "get_all_events",
		Description: "All Events Overview - Get complete analytics and overview of all your events",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type:       "object",
			Properties: withProfile(nil),
		},
	},
	{
		Name:        "get_event",
		Description: "Event Details - Get comprehensive information about a specific event",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: withProfile(map[string]modules.Property{
				"api_id": {Type: "string", Description: "The event ID (e.g., 'evt-12345') - you can find this from list_events"},
			}),
			Required: []string{"api_id"},
		},
	},

	// Guests
	{
		Name:        "get_event_guest",
		Description: "Individual Guest - Get detailed information about a specific guest",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: withProfile(map[string]modules.Property{
				"api_id":       {Type: "string", Description: "The event ID where the guest is registered"},
				"guest_api_id": {Type: "string", Description: "The guest's ID (use this OR email OR proxy_key)"},
				"email":        {Type: "string", Description: "Guest's email address (use this OR guest_api_id OR proxy_key)"},
				"proxy_key":    {Type: "string", Description: "Guest's proxy key (use this OR guest_api_id OR email)"},
			}),
			Required: []string{"api_id"},
		},
	},
	{
		Name:        "get_event_guests",
		Description: "Guest List - Get a paginated list of all guests for an event",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: withProfile(map[string]modules.Property{
				"api_id":            {Type: "string", Description: "The event ID to get guests for"},
				"pagination_cursor": {Type: "string", Description: "Continue from a previous page (leave empty for first page)"},
				"pagination_limit":  paginationLimit,
			}),
			Required: []string{"api_id"},
		},
	},
	{
		Name:        "get_all_event_guests",
		Description: "Complete Guest Analytics - Get all guests for an event with status breakdown and analytics",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: withProfile(map[string]modules.Property{
				"api_id": {Type: "string", Description: "The event ID to analyze all guests for"},
			}),
			Required: []string{"api_id"},
		},
	},
	{
		Name:        "get_event_summary",
		Description: "Event Report - Get a comprehensive summary combining event details with guest analytics",
		Annotations: modules.AnnotateReadOnly,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: withProfile(map[string]modules.Property{
				"api_id":                {Type: "string", Description: "The event ID to create a summary report for"},
				"include_guest_details": {Type: "boolean", Description: "Include detailed guest analytics in the summary (default: true)", Default: true},
			}),
			Required: []string{"api_id"},
		},
	},

	// Update
	{
		Name:        "update_event",
		Description: "Update Event - Update event details (requires approval before making changes)",
		Annotations: modules.AnnotateUpdate,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: withProfile(map[string]modules.Property{
				"api_id":      {Type: "string", Description: "The event ID to update (e.g., 'evt-12345')"},
				"name":        {Type: "string", Description: "New event name"},
				"description": {Type: "string", Description: "New event description"},
				"start_at":    {Type: "string", Description: "New start date/time (ISO 8601 format, e.g., '2025-06-15T18:00:00Z')"},
				"end_at":      {Type: "string", Description: "New end date/time (ISO 8601 format)"},
				"timezone":    {Type: "string", Description: "New timezone (e.g., 'America/New_York', 'Europe/London')"},
				"event_type": {
					Type:        "string",
					Description: "Event type",
					Enum:        []string{string(lumaapi.EventTypeInPerson), string(lumaapi.EventTypeOnline), string(lumaapi.EventTypeHybrid)},
				},
				"geo_address_json": {
					Type:        "object",
					Description: "Location details for in-person events",
					Properties: map[string]modules.Property{
						"city":         {Type: "string"},
						"region":       {Type: "string"},
						"address":      {Type: "string"},
						"country":      {Type: "string"},
						"full_address": {Type: "string"},
						"description":  {Type: "string"},
					},
				},
				"geo_latitude":  {Type: "string", Description: "Latitude for location"},
				"geo_longitude": {Type: "string", Description: "Longitude for location"},
				"visibility": {
					Type:        "string",
					Description: "Event visibility",
					Enum:        []string{lumaapi.VisibilityPublic, lumaapi.VisibilityPrivate, lumaapi.VisibilityUnlisted},
				},
				"meeting_url":      {Type: "string", Description: "Meeting URL for online events"},
				"zoom_meeting_url": {Type: "string", Description: "Zoom meeting URL"},
				"cover_url":        {Type: "string", Description: "URL for event cover image"},
				"require_approval": {Type: "boolean", Description: "Ask for approval before making changes (default: true)", Default: true},
			}),
			Required: []string{"api_id"},
		},
	},

	// Export
	{
		Name:        "export_guest_list",
		Description: "Export Guests - Write the guest lists of selected events to a CSV file, one column per registration question",
		Annotations: modules.AnnotateLocalWrite,
		InputSchema: modules.InputSchema{
			Type: "object",
			Properties: withProfile(map[string]modules.Property{
				"event_ids": {
					Type:        "array",
					Description: "Event IDs to export",
					Items:       &modules.Property{Type: "string"},
				},
				"include_all_events":  {Type: "boolean", Description: "Export every event of the calendar (default: false)"},
				"include_future_only": {Type: "boolean", Description: "Only export events that have not started yet (default: false)"},
				"filename":            {Type: "string", Description: "File name inside the export directory (default: luma-guests-<profile>-<date>.csv)"},
			}),
		},
	},
}

// =============================================================================
// Tool Handlers
// =============================================================================

type toolHandler func(m *Module, ctx context.Context, params map[string]any) (string, error)

var toolHandlers = map[string]toolHandler{
	"configure_profile":    (*Module).configureProfile,
	"list_profiles":        (*Module).listProfiles,
	"switch_profile":       (*Module).switchProfile,
	"remove_profile":       (*Module).removeProfile,
	"list_events":          (*Module).listEvents,
	"get_all_events":       (*Module).getAllEvents,
	"get_event":            (*Module).getEvent,
	"get_event_guest":      (*Module).getEventGuest,
	"get_event_guests":     (*Module).getEventGuests,
	"get_all_event_guests": (*Module).getAllEventGuests,
	"get_event_summary":    (*Module).getEventSummary,
	"update_event":         (*Module).updateEvent,
	"export_guest_list":    (*Module).exportGuestList,
}
