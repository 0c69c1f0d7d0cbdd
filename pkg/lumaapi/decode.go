package lumaapi

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// decoder is implemented by every response schema.
type decoder[T any] interface {
	*T
	Decode(d *jx.Decoder) error
}

func fieldErr(err error, k []byte) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "decode field %q", k)
}

// decodeString reads a scalar as text. null yields "".
func decodeString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Bool:
		b, err := d.Bool()
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(b), nil
	default:
		return d.Str()
	}
}

// decodeAnswer reads a registration answer. Multi-select answers arrive as
// arrays and are joined with ", ".
func decodeAnswer(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Array:
		var parts []string
		if err := d.Arr(func(d *jx.Decoder) error {
			s, err := decodeAnswer(d)
			if err != nil {
				return err
			}
			if s != "" {
				parts = append(parts, s)
			}
			return nil
		}); err != nil {
			return "", err
		}
		return strings.Join(parts, ", "), nil
	case jx.Object:
		raw, err := d.Raw()
		if err != nil {
			return "", err
		}
		return string(raw), nil
	default:
		return decodeString(d)
	}
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Null:
		return decimal.Zero, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil || s == "" {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	}
}

// Decode decodes GeoAddress from json.
func (s *GeoAddress) Decode(d *jx.Decoder) error {
	if s == nil {
		return errors.New("invalid: unable to decode GeoAddress to nil")
	}
	return d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		var err error
		switch string(k) {
		case "city":
			s.City, err = decodeString(d)
		case "region":
			s.Region, err = decodeString(d)
		case "address":
			s.Address, err = decodeString(d)
		case "country":
			s.Country, err = decodeString(d)
		case "full_address":
			s.FullAddress, err = decodeString(d)
		case "description":
			s.Description, err = decodeString(d)
		default:
			return d.Skip()
		}
		return fieldErr(err, k)
	})
}

// decodeGeoAddress accepts an object, a JSON-encoded string, or null.
func decodeGeoAddress(d *jx.Decoder) (*GeoAddress, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil || strings.TrimSpace(s) == "" {
			return nil, err
		}
		g := new(GeoAddress)
		if err := g.Decode(jx.DecodeBytes([]byte(s))); err != nil {
			return nil, err
		}
		return g, nil
	default:
		g := new(GeoAddress)
		if err := g.Decode(d); err != nil {
			return nil, err
		}
		return g, nil
	}
}

// Decode decodes Event from json.
func (s *Event) Decode(d *jx.Decoder) error {
	if s == nil {
		return errors.New("invalid: unable to decode Event to nil")
	}
	return d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		var err error
		switch string(k) {
		case "api_id":
			s.APIID, err = decodeString(d)
		case "id":
			var id string
			id, err = decodeString(d)
			if s.APIID == "" {
				s.APIID = id
			}
		case "name":
			s.Name, err = decodeString(d)
		case "description":
			s.Description, err = decodeString(d)
		case "start_at":
			s.StartAt, err = decodeString(d)
		case "end_at":
			s.EndAt, err = decodeString(d)
		case "duration_interval":
			s.DurationInterval, err = decodeString(d)
		case "timezone":
			s.Timezone, err = decodeString(d)
		case "event_type":
			s.EventType, err = decodeString(d)
		case "cover_url":
			s.CoverURL, err = decodeString(d)
		case "url":
			s.URL, err = decodeString(d)
		case "geo_address_json":
			s.GeoAddress, err = decodeGeoAddress(d)
		case "geo_latitude":
			s.GeoLatitude, err = decodeString(d)
		case "geo_longitude":
			s.GeoLongitude, err = decodeString(d)
		case "visibility":
			s.Visibility, err = decodeString(d)
		case "meeting_url":
			s.MeetingURL, err = decodeString(d)
		case "zoom_meeting_url":
			s.ZoomMeetingURL, err = decodeString(d)
		case "user_api_id":
			s.UserAPIID, err = decodeString(d)
		case "calendar_api_id":
			s.CalendarAPIID, err = decodeString(d)
		case "created_at":
			s.CreatedAt, err = decodeString(d)
		default:
			return d.Skip()
		}
		return fieldErr(err, k)
	})
}

// Decode decodes Tag from json.
func (s *Tag) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		var err error
		switch string(k) {
		case "api_id":
			s.APIID, err = decodeString(d)
		case "name":
			s.Name, err = decodeString(d)
		default:
			return d.Skip()
		}
		return fieldErr(err, k)
	})
}

// Decode decodes EventEntry from json. The nested event object is required.
func (s *EventEntry) Decode(d *jx.Decoder) error {
	if s == nil {
		return errors.New("invalid: unable to decode EventEntry to nil")
	}
	hasEvent := false
	if err := d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		switch string(k) {
		case "api_id":
			v, err := decodeString(d)
			s.APIID = v
			return fieldErr(err, []byte("api_id"))
		case "event":
			if d.Next() == jx.Null {
				return d.Null()
			}
			hasEvent = true
			return fieldErr(s.Event.Decode(d), []byte("event"))
		case "tags":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				var t Tag
				if err := t.Decode(d); err != nil {
					return err
				}
				s.Tags = append(s.Tags, t)
				return nil
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return err
	}
	if !hasEvent {
		return errors.New("entry is missing event data")
	}
	if s.Event.APIID == "" {
		s.Event.APIID = s.APIID
	}
	return nil
}

// Decode decodes RegistrationAnswer from json.
func (s *RegistrationAnswer) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		var err error
		switch string(k) {
		case "label":
			s.Label, err = decodeString(d)
		case "answer", "value":
			s.Answer, err = decodeAnswer(d)
		case "question_id":
			s.QuestionID, err = decodeString(d)
		case "question_type":
			s.QuestionType, err = decodeString(d)
		default:
			return d.Skip()
		}
		return fieldErr(err, k)
	})
}

// Decode decodes Ticket from json.
func (s *Ticket) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		var err error
		switch string(k) {
		case "api_id":
			s.APIID, err = decodeString(d)
		case "name":
			s.Name, err = decodeString(d)
		case "amount":
			s.Amount, err = decodeDecimal(d)
		case "currency":
			s.Currency, err = decodeString(d)
		case "checked_in_at":
			s.CheckedInAt, err = decodeString(d)
		default:
			return d.Skip()
		}
		return fieldErr(err, k)
	})
}

// Decode decodes Guest from json.
func (s *Guest) Decode(d *jx.Decoder) error {
	if s == nil {
		return errors.New("invalid: unable to decode Guest to nil")
	}
	return d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		var err error
		switch string(k) {
		case "api_id":
			s.APIID, err = decodeString(d)
		case "id":
			var id string
			id, err = decodeString(d)
			if s.APIID == "" {
				s.APIID = id
			}
		case "name":
			s.Name, err = decodeString(d)
		case "email":
			s.Email, err = decodeString(d)
		case "approval_status":
			s.ApprovalStatus, err = decodeString(d)
		case "created_at":
			s.CreatedAt, err = decodeString(d)
		case "registered_at":
			s.RegisteredAt, err = decodeString(d)
		case "invited_at":
			s.InvitedAt, err = decodeString(d)
		case "joined_at":
			s.JoinedAt, err = decodeString(d)
		case "checked_in_at":
			s.CheckedInAt, err = decodeString(d)
		case "user_api_id":
			s.UserAPIID, err = decodeString(d)
		case "user_name":
			s.UserName, err = decodeString(d)
		case "user_email":
			s.UserEmail, err = decodeString(d)
		case "user_first_name":
			s.UserFirstName, err = decodeString(d)
		case "user_last_name":
			s.UserLastName, err = decodeString(d)
		case "phone_number":
			s.PhoneNumber, err = decodeString(d)
		case "check_in_qr_code":
			s.CheckInQRCode, err = decodeString(d)
		case "registration_answers":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.Arr(func(d *jx.Decoder) error {
				var a RegistrationAnswer
				if err := a.Decode(d); err != nil {
					return err
				}
				s.RegistrationAnswers = append(s.RegistrationAnswers, a)
				return nil
			})
		case "event_tickets":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.Arr(func(d *jx.Decoder) error {
				var t Ticket
				if err := t.Decode(d); err != nil {
					return err
				}
				s.EventTickets = append(s.EventTickets, t)
				return nil
			})
		case "event_ticket":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s.EventTicket = new(Ticket)
			err = s.EventTicket.Decode(d)
		default:
			return d.Skip()
		}
		return fieldErr(err, k)
	})
}

// Decode decodes GuestEntry from json. The nested guest object is required.
func (s *GuestEntry) Decode(d *jx.Decoder) error {
	if s == nil {
		return errors.New("invalid: unable to decode GuestEntry to nil")
	}
	hasGuest := false
	if err := d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		switch string(k) {
		case "api_id":
			v, err := decodeString(d)
			s.APIID = v
			return fieldErr(err, []byte("api_id"))
		case "guest":
			if d.Next() == jx.Null {
				return d.Null()
			}
			hasGuest = true
			return fieldErr(s.Guest.Decode(d), []byte("guest"))
		default:
			return d.Skip()
		}
	}); err != nil {
		return err
	}
	if !hasGuest {
		return errors.New("entry is missing guest data")
	}
	if s.Guest.APIID == "" {
		s.Guest.APIID = s.APIID
	}
	return nil
}

// decodeEnvelope extracts the object stored under key from a response body.
// A missing or null object is an invalid response.
func decodeEnvelope[T any, P decoder[T]](op, key string, body []byte) (*T, error) {
	var out *T
	d := jx.DecodeBytes(body)
	if err := d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		if string(k) != key {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		v := new(T)
		if err := P(v).Decode(d); err != nil {
			return err
		}
		out = v
		return nil
	}); err != nil {
		return nil, &Error{Kind: KindInvalidResponse, Op: op, Msg: "malformed " + key + " data", Err: err}
	}
	if out == nil {
		return nil, invalidResponse(op, "missing %s data", key)
	}
	return out, nil
}

// decodePage decodes a {entries, has_more, next_cursor} list response.
func decodePage[T any, P decoder[T]](op string, body []byte) (*Page[T], error) {
	var (
		page    Page[T]
		entries bool
	)
	d := jx.DecodeBytes(body)
	if err := d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		switch string(k) {
		case "entries":
			entries = true
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				v := new(T)
				if err := P(v).Decode(d); err != nil {
					return err
				}
				page.Entries = append(page.Entries, *v)
				return nil
			})
		case "has_more":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Bool()
			page.HasMore = v
			return fieldErr(err, []byte("has_more"))
		case "next_cursor":
			v, err := decodeString(d)
			page.NextCursor = v
			return fieldErr(err, []byte("next_cursor"))
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, &Error{Kind: KindInvalidResponse, Op: op, Msg: "malformed list response", Err: err}
	}
	if !entries {
		return nil, invalidResponse(op, "missing entries")
	}
	return &page, nil
}
