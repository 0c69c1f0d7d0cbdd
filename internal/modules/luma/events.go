package luma

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Trust-Square/luma-mcp-server/internal/modules"
	"github.com/Trust-Square/luma-mcp-server/pkg/lumaapi"
)

// =============================================================================
// Events
// =============================================================================

func (m *Module) listEvents(ctx context.Context, params map[string]any) (string, error) {
	var p lumaapi.ListEventsParams
	if v := modules.String(params, "pagination_cursor"); v != "" {
		p.Cursor.SetTo(v)
	}
	if n, ok := modules.Int(params, "pagination_limit"); ok {
		p.Limit = n
	}
	after := modules.String(params, "after")
	before := modules.String(params, "before")
	if after != "" {
		p.After.SetTo(after)
	}
	if before != "" {
		p.Before.SetTo(before)
	}
	if v := modules.String(params, "series_mode"); v != "" {
		p.SeriesMode.SetTo(v)
	}
	if v, ok := params["include_cancelled"].(bool); ok {
		p.IncludeCancelled.SetTo(v)
	}

	c, _, err := m.client(ctx, params)
	if err != nil {
		return "", err
	}
	page, err := c.ListEvents(ctx, p)
	if err != nil {
		return "", err
	}

	items := make([]string, 0, len(page.Entries))
	for i := range page.Entries {
		e := &page.Entries[i].Event
		items = append(items, fmt.Sprintf("%d. **%s** (%s)\n   - Type: %s\n   - Start: %s\n   - Timezone: %s\n   - Visibility: %s\n   - URL: %s",
			i+1, e.Name, e.APIID,
			e.Type(),
			formatTime(e.StartAt, e.Timezone),
			firstNonEmpty(notSpecified, e.Timezone),
			visibility(e),
			firstNonEmpty(notAvailable, e.URL),
		))
	}

	var dateRange []string
	if after != "" {
		dateRange = append(dateRange, "- After: "+formatTime(after, ""))
	}
	if before != "" {
		dateRange = append(dateRange, "- Before: "+formatTime(before, ""))
	}
	if len(dateRange) == 0 {
		dateRange = append(dateRange, "- All dates")
	}

	var sb strings.Builder
	sb.WriteString("Events List (Page Results):\n\n")
	sb.WriteString(paginationInfo(len(page.Entries), "events", page))
	sb.WriteString("\n\n**Date Range:**\n")
	sb.WriteString(strings.Join(dateRange, "\n"))
	sb.WriteString("\n\n**Events:**\n")
	sb.WriteString(orNone(strings.Join(items, "\n\n"), "No events found"))
	return sb.String(), nil
}

func paginationInfo[T any](n int, noun string, page *lumaapi.Page[T]) string {
	return fmt.Sprintf("**Pagination Info:**\n- Showing %d %s\n- Has more pages: %s\n- Next cursor: %s",
		n, noun, yesNo(page.HasMore), firstNonEmpty("None", page.NextCursor))
}

func orNone(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func (m *Module) getAllEvents(ctx context.Context, params map[string]any) (string, error) {
	c, _, err := m.client(ctx, params)
	if err != nil {
		return "", err
	}
	entries, err := c.AllEvents(ctx)
	if err != nil {
		return "", err
	}

	byVisibility := newCounter()
	byType := newCounter()
	events := make([]*lumaapi.Event, 0, len(entries))
	for i := range entries {
		e := &entries[i].Event
		byVisibility.add(visibility(e))
		byType.add(string(e.Type()))
		events = append(events, e)
	}
	sortChronologically(events)

	items := make([]string, 0, len(events))
	for i, e := range events {
		items = append(items, fmt.Sprintf("%d. **%s** (%s)\n   - Start: %s\n   - Type: %s | Visibility: %s\n   - Location: %s",
			i+1, e.Name, e.APIID,
			formatTime(e.StartAt, e.Timezone),
			e.Type(), visibility(e),
			locationText(e),
		))
	}

	var sb strings.Builder
	sb.WriteString("All Events Summary:\n\n")
	fmt.Fprintf(&sb, "**Overview:**\n- Total Events: %d\n\n", len(events))
	sb.WriteString("**By Visibility:**\n")
	sb.WriteString(byVisibility.lines("- ", capitalize))
	sb.WriteString("\n\n**By Type:**\n")
	sb.WriteString(byType.lines("- ", func(s string) string { return typeLabel(lumaapi.EventType(s)) }))
	sb.WriteString("\n\n**All Events (Chronological):**\n")
	sb.WriteString(orNone(strings.Join(items, "\n\n"), "No events found"))
	return sb.String(), nil
}

// sortChronologically orders events by start time. Events without a
// parseable start keep their relative order after the dated ones.
func sortChronologically(events []*lumaapi.Event) {
	starts := make(map[*lumaapi.Event]time.Time, len(events))
	for _, e := range events {
		if t, err := e.Start(); err == nil {
			starts[e] = t
		}
	}
	slices.SortStableFunc(events, func(a, b *lumaapi.Event) int {
		ta, okA := starts[a]
		tb, okB := starts[b]
		switch {
		case okA && okB:
			return ta.Compare(tb)
		case okA:
			return -1
		case okB:
			return 1
		}
		return 0
	})
}

func (m *Module) getEvent(ctx context.Context, params map[string]any) (string, error) {
	c, _, err := m.client(ctx, params)
	if err != nil {
		return "", err
	}
	e, err := c.GetEvent(ctx, modules.String(params, "api_id"))
	if err != nil {
		return "", err
	}

	description := "No description provided"
	if e.Description != "" {
		description = truncate(e.Description, 500)
	}
	location := "- No location information available"
	if g := e.GeoAddress; g != nil {
		location = fmt.Sprintf("- Address: %s\n- City: %s\n- Country: %s",
			firstNonEmpty(notSpecified, g.FullAddress, g.Address),
			firstNonEmpty(notSpecified, g.City),
			firstNonEmpty(notSpecified, g.Country))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Event Details for %s:\n\n", e.Name)
	sb.WriteString("**Basic Information:**\n")
	fmt.Fprintf(&sb, "- Event ID: %s\n", e.APIID)
	fmt.Fprintf(&sb, "- Name: %s\n", e.Name)
	fmt.Fprintf(&sb, "- Description: %s\n", description)
	fmt.Fprintf(&sb, "- Type: %s\n", e.Type())
	fmt.Fprintf(&sb, "- Timezone: %s\n", firstNonEmpty(notSpecified, e.Timezone))
	fmt.Fprintf(&sb, "- Visibility: %s\n\n", visibility(e))
	sb.WriteString("**Timing:**\n")
	fmt.Fprintf(&sb, "- Start: %s\n", formatTimeOr(e.StartAt, e.Timezone, notSpecified))
	fmt.Fprintf(&sb, "- End: %s\n", formatTimeOr(e.EndAt, e.Timezone, notSpecified))
	fmt.Fprintf(&sb, "- Duration: %s\n\n", humanDuration(e))
	sb.WriteString("**Location:**\n")
	sb.WriteString(location + "\n\n")
	sb.WriteString("**Meeting Info:**\n")
	fmt.Fprintf(&sb, "- Event URL: %s\n", firstNonEmpty(notAvailable, e.URL))
	fmt.Fprintf(&sb, "- Meeting URL: %s\n", firstNonEmpty("No online meeting", e.OnlineURL()))
	fmt.Fprintf(&sb, "- Cover Image: %s\n\n", firstNonEmpty(notAvailable, e.CoverURL))
	sb.WriteString("**Additional Info:**\n")
	fmt.Fprintf(&sb, "- Created: %s\n", formatTimeOr(e.CreatedAt, e.Timezone, notAvailable))
	fmt.Fprintf(&sb, "- Calendar ID: %s", firstNonEmpty(notAvailable, e.CalendarAPIID))
	return sb.String(), nil
}

// =============================================================================
// Guests
// =============================================================================

func (m *Module) getEventGuest(ctx context.Context, params map[string]any) (string, error) {
	id := lumaapi.GuestIdentifier{
		GuestAPIID: modules.String(params, "guest_api_id"),
		Email:      modules.String(params, "email"),
		ProxyKey:   modules.String(params, "proxy_key"),
	}
	c, _, err := m.client(ctx, params)
	if err != nil {
		return "", err
	}
	g, err := c.GetGuest(ctx, modules.String(params, "api_id"), id)
	if err != nil {
		return "", err
	}

	answers := "None"
	if len(g.RegistrationAnswers) > 0 {
		lines := make([]string, 0, len(g.RegistrationAnswers))
		for _, a := range g.RegistrationAnswers {
			lines = append(lines, a.Label+": "+a.Answer)
		}
		answers = strings.Join(lines, "\n  ")
	}
	ticket := primaryTicket(g)
	ticketName := "No ticket"
	if ticket != nil {
		ticketName = firstNonEmpty("Unnamed ticket", ticket.Name)
	}

	var sb strings.Builder
	sb.WriteString("Guest Information:\n\n")
	sb.WriteString("**Basic Details:**\n")
	fmt.Fprintf(&sb, "- Guest ID: %s\n", g.APIID)
	fmt.Fprintf(&sb, "- Name: %s\n", firstNonEmpty(notAvailable, g.DisplayName()))
	fmt.Fprintf(&sb, "- Email: %s\n", firstNonEmpty(notAvailable, g.ContactEmail()))
	fmt.Fprintf(&sb, "- Approval Status: %s\n\n", firstNonEmpty("Not applicable", g.ApprovalStatus))
	sb.WriteString("**Registration Details:**\n")
	fmt.Fprintf(&sb, "- Registered: %s\n", formatTimeOr(g.RegisteredAt, "", notAvailable))
	fmt.Fprintf(&sb, "- Invited: %s\n", formatTimeOr(g.InvitedAt, "", "Not invited"))
	fmt.Fprintf(&sb, "- Joined: %s\n", formatTimeOr(g.JoinedAt, "", "Not joined"))
	fmt.Fprintf(&sb, "- Checked In: %s\n\n", formatTimeOr(g.CheckedInAt, "", "Not checked in"))
	sb.WriteString("**Contact Info:**\n")
	fmt.Fprintf(&sb, "- Phone: %s\n", firstNonEmpty("Not provided", g.PhoneNumber))
	fmt.Fprintf(&sb, "- User ID: %s\n\n", firstNonEmpty(notAvailable, g.UserAPIID))
	sb.WriteString("**Registration Answers:**\n")
	fmt.Fprintf(&sb, "  %s\n\n", answers)
	sb.WriteString("**Ticket Info:**\n")
	fmt.Fprintf(&sb, "- Ticket: %s\n", ticketName)
	fmt.Fprintf(&sb, "- Amount: %s\n\n", ticketAmount(ticket))
	sb.WriteString("**Check-in:**\n")
	fmt.Fprintf(&sb, "- QR Code: %s", firstNonEmpty(notAvailable, g.CheckInQRCode))
	return sb.String(), nil
}

func (m *Module) getEventGuests(ctx context.Context, params map[string]any) (string, error) {
	p := lumaapi.PageParams{Cursor: modules.String(params, "pagination_cursor")}
	if n, ok := modules.Int(params, "pagination_limit"); ok {
		p.Limit = n
	}
	c, _, err := m.client(ctx, params)
	if err != nil {
		return "", err
	}
	page, err := c.ListGuests(ctx, modules.String(params, "api_id"), p)
	if err != nil {
		return "", err
	}

	items := make([]string, 0, len(page.Entries))
	for i := range page.Entries {
		g := &page.Entries[i].Guest
		items = append(items, fmt.Sprintf("%d. %s (%s) - Status: %s", i+1, g.DisplayName(), g.ContactEmail(), g.Status()))
	}

	var sb strings.Builder
	sb.WriteString("Event Guests (Page Results):\n\n")
	sb.WriteString(paginationInfo(len(page.Entries), "guests", page))
	sb.WriteString("\n\n**Guests:**\n")
	sb.WriteString(orNone(strings.Join(items, "\n"), "No guests found"))
	return sb.String(), nil
}

func (m *Module) getAllEventGuests(ctx context.Context, params map[string]any) (string, error) {
	c, _, err := m.client(ctx, params)
	if err != nil {
		return "", err
	}
	guests, err := c.AllGuests(ctx, modules.String(params, "api_id"))
	if err != nil {
		return "", err
	}

	byStatus := newCounter()
	items := make([]string, 0, len(guests))
	for i := range guests {
		g := &guests[i]
		byStatus.add(g.Status())
		company, _ := g.AnswerByType("company")
		items = append(items, fmt.Sprintf("%d. %s (%s) - %s\n   Company: %s",
			i+1, g.DisplayName(), g.ContactEmail(), g.Status(), firstNonEmpty(notSpecified, company)))
	}

	var sb strings.Builder
	sb.WriteString("All Event Guests:\n\n")
	fmt.Fprintf(&sb, "**Summary:**\n- Total Guests: %d\n\n", len(guests))
	sb.WriteString("**By Approval Status:**\n")
	sb.WriteString(orNone(byStatus.lines("- ", identity), "- None"))
	sb.WriteString("\n\n**Complete Guest List:**\n")
	sb.WriteString(orNone(strings.Join(items, "\n\n"), "No guests found"))
	return sb.String(), nil
}

func (m *Module) getEventSummary(ctx context.Context, params map[string]any) (string, error) {
	eventID := modules.String(params, "api_id")
	c, _, err := m.client(ctx, params)
	if err != nil {
		return "", err
	}
	e, err := c.GetEvent(ctx, eventID)
	if err != nil {
		return "", err
	}

	var guestSummary string
	if modules.Bool(params, "include_guest_details", true) {
		guests, err := c.AllGuests(ctx, eventID)
		if err != nil {
			return "", err
		}
		byStatus := newCounter()
		for i := range guests {
			byStatus.add(guests[i].Status())
		}
		guestSummary = fmt.Sprintf("\n\n**Guest Summary:**\n- Total Registered: %d", len(guests))
		if len(guests) > 0 {
			guestSummary += "\n" + byStatus.lines("  - ", capitalize)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Complete Event Summary for %q:\n\n", e.Name)
	sb.WriteString("**Event Details:**\n")
	fmt.Fprintf(&sb, "- Event ID: %s\n", e.APIID)
	fmt.Fprintf(&sb, "- Type: %s\n", e.Type())
	fmt.Fprintf(&sb, "- Start: %s\n", formatTimeOr(e.StartAt, e.Timezone, notSpecified))
	fmt.Fprintf(&sb, "- Duration: %s\n", humanDuration(e))
	fmt.Fprintf(&sb, "- Location: %s\n", locationText(e))
	fmt.Fprintf(&sb, "- Visibility: %s\n", capitalize(visibility(e)))
	fmt.Fprintf(&sb, "- Event URL: %s", firstNonEmpty(notAvailable, e.URL))
	sb.WriteString(guestSummary)
	return sb.String(), nil
}
