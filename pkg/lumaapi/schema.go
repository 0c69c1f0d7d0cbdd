package lumaapi

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// EventType is the derived event classification.
type EventType string

const (
	EventTypeInPerson EventType = "in_person"
	EventTypeOnline   EventType = "online"
	EventTypeHybrid   EventType = "hybrid"
	EventTypeUnknown  EventType = "unknown"
)

// Visibility values accepted by the API.
const (
	VisibilityPublic   = "public"
	VisibilityPrivate  = "private"
	VisibilityUnlisted = "unlisted"
)

// Approval status values. An absent status is displayed as pending.
const (
	ApprovalApproved = "approved"
	ApprovalPending  = "pending"
	ApprovalDeclined = "declined"
)

// GeoAddress is the location record of an in-person event.
type GeoAddress struct {
	City        string
	Region      string
	Address     string
	Country     string
	FullAddress string
	Description string
}

// Event is a Luma event as returned by /event/get and inside list entries.
type Event struct {
	APIID            string
	Name             string
	Description      string
	StartAt          string
	EndAt            string
	DurationInterval string
	Timezone         string
	EventType        string
	CoverURL         string
	URL              string
	GeoAddress       *GeoAddress
	GeoLatitude      string
	GeoLongitude     string
	Visibility       string
	MeetingURL       string
	ZoomMeetingURL   string
	UserAPIID        string
	CalendarAPIID    string
	CreatedAt        string
}

// OnlineURL returns the meeting URL, preferring meeting_url over zoom_meeting_url.
func (e *Event) OnlineURL() string {
	if e.MeetingURL != "" {
		return e.MeetingURL
	}
	return e.ZoomMeetingURL
}

// Type classifies the event from the presence of a meeting URL and a geo address.
func (e *Event) Type() EventType {
	hasGeo := e.GeoAddress != nil
	if e.OnlineURL() != "" {
		if hasGeo {
			return EventTypeHybrid
		}
		return EventTypeOnline
	}
	if hasGeo {
		return EventTypeInPerson
	}
	return EventTypeUnknown
}

// Start parses start_at.
func (e *Event) Start() (time.Time, error) {
	return ParseTime(e.StartAt)
}

// End parses end_at.
func (e *Event) End() (time.Time, error) {
	return ParseTime(e.EndAt)
}

// Tag is an event tag attached to calendar list entries.
type Tag struct {
	APIID string
	Name  string
}

// EventEntry is one entry of /calendar/list-events.
type EventEntry struct {
	APIID string
	Event Event
	Tags  []Tag
}

// RegistrationAnswer is a guest's answer to a registration question.
type RegistrationAnswer struct {
	Label        string
	Answer       string
	QuestionID   string
	QuestionType string
}

// Ticket is the ticket a guest holds.
type Ticket struct {
	APIID       string
	Name        string
	Amount      decimal.Decimal
	Currency    string
	CheckedInAt string
}

// Guest is a registrant of a single event.
type Guest struct {
	APIID               string
	Name                string
	Email               string
	ApprovalStatus      string
	CreatedAt           string
	RegisteredAt        string
	InvitedAt           string
	JoinedAt            string
	CheckedInAt         string
	UserAPIID           string
	UserName            string
	UserEmail           string
	UserFirstName       string
	UserLastName        string
	PhoneNumber         string
	CheckInQRCode       string
	RegistrationAnswers []RegistrationAnswer
	EventTickets        []Ticket
	EventTicket         *Ticket
}

// Status returns the approval status, defaulting to pending when absent.
func (g *Guest) Status() string {
	if g.ApprovalStatus == "" {
		return ApprovalPending
	}
	return g.ApprovalStatus
}

// DisplayName falls back to the user's name fields when the guest name is empty.
func (g *Guest) DisplayName() string {
	if g.Name != "" {
		return g.Name
	}
	if g.UserName != "" {
		return g.UserName
	}
	return strings.TrimSpace(g.UserFirstName + " " + g.UserLastName)
}

// ContactEmail returns the guest email, falling back to the user's email.
func (g *Guest) ContactEmail() string {
	if g.Email != "" {
		return g.Email
	}
	return g.UserEmail
}

// Answer returns the answer for a registration question label.
func (g *Guest) Answer(label string) (string, bool) {
	for _, a := range g.RegistrationAnswers {
		if a.Label == label {
			return a.Answer, true
		}
	}
	return "", false
}

// AnswerByType returns the first answer whose question type matches.
func (g *Guest) AnswerByType(questionType string) (string, bool) {
	for _, a := range g.RegistrationAnswers {
		if a.QuestionType == questionType {
			return a.Answer, true
		}
	}
	return "", false
}

// GuestEntry is one entry of /event/get-guests.
type GuestEntry struct {
	APIID string
	Guest Guest
}

// Page is a paginated list response. If HasMore is true NextCursor must be
// supplied verbatim on the next request.
type Page[T any] struct {
	Entries    []T
	HasMore    bool
	NextCursor string
}

// ParseTime parses an API timestamp.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse timestamp %q", s)
	}
	return t, nil
}
