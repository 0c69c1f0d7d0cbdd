package lumaapi

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-faster/jx"
)

// Series modes accepted by /calendar/list-events.
const (
	SeriesModeInstances = "instances"
	SeriesModeSeries    = "series"
)

// ListEventsParams are the query parameters of /calendar/list-events.
type ListEventsParams struct {
	Cursor           OptString
	Limit            int
	After            OptString
	Before           OptString
	SeriesMode       OptString
	IncludeCancelled OptBool
}

func (p ListEventsParams) query() url.Values {
	q := url.Values{}
	if v, ok := p.Cursor.Get(); ok && v != "" {
		q.Set("pagination_cursor", v)
	}
	if p.Limit > 0 {
		q.Set("pagination_limit", strconv.Itoa(p.Limit))
	}
	if v, ok := p.After.Get(); ok && v != "" {
		q.Set("after", v)
	}
	if v, ok := p.Before.Get(); ok && v != "" {
		q.Set("before", v)
	}
	if v, ok := p.SeriesMode.Get(); ok && v != "" {
		q.Set("series_mode", v)
	}
	if p.IncludeCancelled.IsSet() {
		q.Set("include_cancelled", strconv.FormatBool(p.IncludeCancelled.Value))
	}
	return q
}

// ListEvents returns one page of calendar events.
func (c *Client) ListEvents(ctx context.Context, params ListEventsParams) (*Page[EventEntry], error) {
	const op = "list_events"
	body, err := c.get(ctx, op, c.calendarURL, "/calendar/list-events", params.query())
	if err != nil {
		return nil, err
	}
	return decodePage[EventEntry](op, body)
}

// AllEvents follows pagination until every calendar event is collected.
func (c *Client) AllEvents(ctx context.Context) ([]EventEntry, error) {
	return CollectAll[EventEntry](ctx, c.maxPages, func(ctx context.Context, cursor string, limit int) (*Page[EventEntry], error) {
		p := ListEventsParams{Limit: limit}
		if cursor != "" {
			p.Cursor.SetTo(cursor)
		}
		return c.ListEvents(ctx, p)
	})
}

// GetEvent fetches one event by its api_id.
func (c *Client) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	const op = "get_event"
	if strings.TrimSpace(eventID) == "" {
		return nil, invalidArguments(op, "event api_id is required")
	}
	body, err := c.get(ctx, op, c.baseURL, "/event/get", url.Values{"api_id": {eventID}})
	if err != nil {
		return nil, err
	}
	return decodeEnvelope[Event](op, "event", body)
}

// UpdateEventParams is a partial event update. Only set fields are sent.
type UpdateEventParams struct {
	APIID          string
	Name           OptString
	Description    OptString
	StartAt        OptString
	EndAt          OptString
	Timezone       OptString
	EventType      OptString
	GeoAddress     *GeoAddress
	GeoLatitude    OptString
	GeoLongitude   OptString
	Visibility     OptString
	MeetingURL     OptString
	ZoomMeetingURL OptString
	CoverURL       OptString
}

// Encode writes the update request body.
func (s *UpdateEventParams) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("api_id")
	e.Str(s.APIID)
	for _, f := range []struct {
		name string
		v    OptString
	}{
		{"name", s.Name},
		{"description", s.Description},
		{"start_at", s.StartAt},
		{"end_at", s.EndAt},
		{"timezone", s.Timezone},
		{"event_type", s.EventType},
		{"geo_latitude", s.GeoLatitude},
		{"geo_longitude", s.GeoLongitude},
		{"visibility", s.Visibility},
		{"meeting_url", s.MeetingURL},
		{"zoom_meeting_url", s.ZoomMeetingURL},
		{"cover_url", s.CoverURL},
	} {
		if v, ok := f.v.Get(); ok {
			e.FieldStart(f.name)
			e.Str(v)
		}
	}
	if s.GeoAddress != nil {
		e.FieldStart("geo_address_json")
		s.GeoAddress.Encode(e)
	}
	e.ObjEnd()
}

// Encode writes the address as a geo_address_json object, omitting empty fields.
func (s *GeoAddress) Encode(e *jx.Encoder) {
	e.ObjStart()
	for _, f := range [][2]string{
		{"city", s.City},
		{"region", s.Region},
		{"address", s.Address},
		{"country", s.Country},
		{"full_address", s.FullAddress},
		{"description", s.Description},
	} {
		if f[1] == "" {
			continue
		}
		e.FieldStart(f[0])
		e.Str(f[1])
	}
	e.ObjEnd()
}

// UpdateEvent applies a partial update and returns the echoed event.
func (c *Client) UpdateEvent(ctx context.Context, params UpdateEventParams) (*Event, error) {
	const op = "update_event"
	if strings.TrimSpace(params.APIID) == "" {
		return nil, invalidArguments(op, "event api_id is required")
	}
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	params.Encode(e)

	body, err := c.post(ctx, op, c.calendarURL, "/event/update", append([]byte(nil), e.Bytes()...))
	if err != nil {
		return nil, err
	}
	return decodeEnvelope[Event](op, "event", body)
}
