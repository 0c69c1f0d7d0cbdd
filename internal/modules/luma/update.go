package luma

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/go-faster/errors"

	"github.com/Trust-Square/luma-mcp-server/internal/modules"
	"github.com/Trust-Square/luma-mcp-server/pkg/lumaapi"
)

// =============================================================================
// Update (two-phase: preview, then apply with require_approval: false)
// =============================================================================

const noChanges = "No changes to apply. All provided values match the current event details."

// updateRequest maps the tool arguments onto a partial update.
func updateRequest(params map[string]any) lumaapi.UpdateEventParams {
	req := lumaapi.UpdateEventParams{APIID: modules.String(params, "api_id")}
	for key, dst := range map[string]*lumaapi.OptString{
		"name":             &req.Name,
		"description":      &req.Description,
		"start_at":         &req.StartAt,
		"end_at":           &req.EndAt,
		"timezone":         &req.Timezone,
		"event_type":       &req.EventType,
		"geo_latitude":     &req.GeoLatitude,
		"geo_longitude":    &req.GeoLongitude,
		"visibility":       &req.Visibility,
		"meeting_url":      &req.MeetingURL,
		"zoom_meeting_url": &req.ZoomMeetingURL,
		"cover_url":        &req.CoverURL,
	} {
		if v, ok := modules.OptionalString(params, key); ok {
			dst.SetTo(v)
		}
	}
	if geo, ok := params["geo_address_json"].(map[string]any); ok {
		req.GeoAddress = &lumaapi.GeoAddress{
			City:        modules.String(geo, "city"),
			Region:      modules.String(geo, "region"),
			Address:     modules.String(geo, "address"),
			Country:     modules.String(geo, "country"),
			FullAddress: modules.String(geo, "full_address"),
			Description: modules.String(geo, "description"),
		}
	}
	return req
}

// diffEvent lists the human-readable changes req would make to cur.
func diffEvent(cur *lumaapi.Event, req lumaapi.UpdateEventParams) []string {
	var changes []string
	add := func(format string, args ...any) {
		changes = append(changes, fmt.Sprintf(format, args...))
	}
	newTZ := req.Timezone.Or(cur.Timezone)

	if v, ok := req.Name.Get(); ok && v != "" && v != cur.Name {
		add("- Name: %q → %q", cur.Name, v)
	}
	if v, ok := req.Description.Get(); ok && v != cur.Description {
		add("- Description: %s → %s", descriptionPreview(cur.Description), descriptionPreview(v))
	}
	if v, ok := req.StartAt.Get(); ok && v != "" && !sameInstant(v, cur.StartAt) {
		add("- Start: %s → %s", formatTimeOr(cur.StartAt, cur.Timezone, "Not set"), formatTime(v, newTZ))
	}
	if v, ok := req.EndAt.Get(); ok && !sameInstant(v, cur.EndAt) {
		add("- End: %s → %s", formatTimeOr(cur.EndAt, cur.Timezone, "Not set"), formatTimeOr(v, newTZ, "Not set"))
	}
	if v, ok := req.Timezone.Get(); ok && v != "" && v != cur.Timezone {
		add("- Timezone: %s → %s", firstNonEmpty("Not set", cur.Timezone), v)
	}
	if v, ok := req.Visibility.Get(); ok && v != "" && v != cur.Visibility {
		add("- Visibility: %s → %s", visibility(cur), v)
	}
	if v, ok := req.EventType.Get(); ok && v != "" && v != string(cur.Type()) {
		add("- Type: %s → %s", cur.Type(), v)
	}
	if v, ok := req.MeetingURL.Get(); ok && v != cur.MeetingURL {
		add("- Meeting URL: %s → %s", firstNonEmpty("Not set", cur.MeetingURL), firstNonEmpty("Not set", v))
	}
	if v, ok := req.ZoomMeetingURL.Get(); ok && v != cur.ZoomMeetingURL {
		add("- Zoom Meeting URL: %s → %s", firstNonEmpty("Not set", cur.ZoomMeetingURL), firstNonEmpty("Not set", v))
	}
	if req.GeoAddress != nil && (cur.GeoAddress == nil || *req.GeoAddress != *cur.GeoAddress) {
		add("- Location updated")
	}
	if v, ok := req.GeoLatitude.Get(); ok && v != cur.GeoLatitude {
		add("- Latitude: %s → %s", firstNonEmpty("Not set", cur.GeoLatitude), firstNonEmpty("Not set", v))
	}
	if v, ok := req.GeoLongitude.Get(); ok && v != cur.GeoLongitude {
		add("- Longitude: %s → %s", firstNonEmpty("Not set", cur.GeoLongitude), firstNonEmpty("Not set", v))
	}
	if v, ok := req.CoverURL.Get(); ok && v != cur.CoverURL {
		add("- Cover Image: %s → %s", firstNonEmpty("Not set", cur.CoverURL), firstNonEmpty("Not set", v))
	}
	return changes
}

func descriptionPreview(s string) string {
	if s == "" {
		return "(empty)"
	}
	return `"` + truncate(s, 50) + `"`
}

// sameInstant compares timestamps by instant when both parse, else textually.
func sameInstant(a, b string) bool {
	ta, errA := lumaapi.ParseTime(a)
	tb, errB := lumaapi.ParseTime(b)
	if errA == nil && errB == nil {
		return ta.Equal(tb)
	}
	return a == b
}

func (m *Module) updateEvent(ctx context.Context, params map[string]any) (string, error) {
	req := updateRequest(params)
	c, _, err := m.client(ctx, params)
	if err != nil {
		return "", err
	}
	cur, err := c.GetEvent(ctx, req.APIID)
	if err != nil {
		return "", err
	}

	changes := diffEvent(cur, req)
	if len(changes) == 0 {
		return noChanges, nil
	}
	changeList := strings.Join(changes, "\n")

	if modules.Bool(params, "require_approval", true) {
		return fmt.Sprintf("**Update Event: %s**\n\nProposed changes:\n%s\n\n**Do you want to proceed with these updates?**\n\n"+
			"⚠️ **No changes have been made yet.** To apply these updates, run the command again with `require_approval: false`.",
			cur.Name, changeList), nil
	}

	updated, err := c.UpdateEvent(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "Failed to update event")
	}
	log.Printf("[luma] event %s updated: %d change(s)", updated.APIID, len(changes))

	var sb strings.Builder
	sb.WriteString("✅ **Event Updated Successfully!**\n\n")
	fmt.Fprintf(&sb, "Applied changes:\n%s\n\n", changeList)
	sb.WriteString("**Updated Event Details:**\n")
	fmt.Fprintf(&sb, "- Event ID: %s\n", updated.APIID)
	fmt.Fprintf(&sb, "- Name: %s\n", updated.Name)
	fmt.Fprintf(&sb, "- Start: %s\n", formatTimeOr(updated.StartAt, updated.Timezone, notSpecified))
	fmt.Fprintf(&sb, "- Timezone: %s\n", firstNonEmpty(notSpecified, updated.Timezone))
	fmt.Fprintf(&sb, "- Visibility: %s\n", visibility(updated))
	fmt.Fprintf(&sb, "- URL: %s", firstNonEmpty(notAvailable, updated.URL))
	return sb.String(), nil
}
