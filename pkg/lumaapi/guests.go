package lumaapi

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// GuestIdentifier selects a guest. When several fields are set the first
// non-empty one in the order GuestAPIID, Email, ProxyKey is used.
type GuestIdentifier struct {
	GuestAPIID string
	Email      string
	ProxyKey   string
}

func (g GuestIdentifier) param() (string, string, bool) {
	switch {
	case g.GuestAPIID != "":
		return "guest_api_id", g.GuestAPIID, true
	case g.Email != "":
		return "email", g.Email, true
	case g.ProxyKey != "":
		return "proxy_key", g.ProxyKey, true
	}
	return "", "", false
}

// PageParams are the cursor pagination parameters of list endpoints.
type PageParams struct {
	Cursor string
	Limit  int
}

// GetGuest fetches a single guest of an event.
func (c *Client) GetGuest(ctx context.Context, eventID string, id GuestIdentifier) (*Guest, error) {
	const op = "get_guest"
	if strings.TrimSpace(eventID) == "" {
		return nil, invalidArguments(op, "event api_id is required")
	}
	key, val, ok := id.param()
	if !ok {
		return nil, invalidArguments(op, "Must provide either guestApiId, email, or proxyKey to identify the guest")
	}
	q := url.Values{"event_api_id": {eventID}}
	q.Set(key, val)

	body, err := c.get(ctx, op, c.baseURL, "/event/get-guest", q)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope[Guest](op, "guest", body)
}

// ListGuests returns one page of an event's guests.
func (c *Client) ListGuests(ctx context.Context, eventID string, params PageParams) (*Page[GuestEntry], error) {
	const op = "list_guests"
	if strings.TrimSpace(eventID) == "" {
		return nil, invalidArguments(op, "event api_id is required")
	}
	q := url.Values{"event_api_id": {eventID}}
	if params.Cursor != "" {
		q.Set("pagination_cursor", params.Cursor)
	}
	if params.Limit > 0 {
		q.Set("pagination_limit", strconv.Itoa(params.Limit))
	}
	body, err := c.get(ctx, op, c.baseURL, "/event/get-guests", q)
	if err != nil {
		return nil, err
	}
	return decodePage[GuestEntry](op, body)
}

// AllGuests follows pagination and returns every guest of an event.
func (c *Client) AllGuests(ctx context.Context, eventID string) ([]Guest, error) {
	entries, err := CollectAll[GuestEntry](ctx, c.maxPages, func(ctx context.Context, cursor string, limit int) (*Page[GuestEntry], error) {
		return c.ListGuests(ctx, eventID, PageParams{Cursor: cursor, Limit: limit})
	})
	if err != nil {
		return nil, err
	}
	guests := make([]Guest, 0, len(entries))
	for _, e := range entries {
		guests = append(guests, e.Guest)
	}
	return guests, nil
}
