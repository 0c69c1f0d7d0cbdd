package db

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// --- Models ---

// CalendarProfile is a named Luma API credential.
type CalendarProfile struct {
	Name        string    `gorm:"primaryKey;type:text" json:"name"`
	APIKey      string    `gorm:"column:api_key;type:text;not null" json:"apiKey"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Position    int       `gorm:"not null;default:0" json:"-"`
	IsDefault   bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

func (CalendarProfile) TableName() string { return "luma_calendar_profiles" }

// ProfileSnapshot is the whole persisted credential store.
type ProfileSnapshot struct {
	Calendars       []CalendarProfile `json:"calendars"`
	DefaultCalendar string            `json:"defaultCalendar,omitempty"`
}

// Clone returns a deep copy.
func (s *ProfileSnapshot) Clone() *ProfileSnapshot {
	if s == nil {
		return &ProfileSnapshot{}
	}
	out := &ProfileSnapshot{DefaultCalendar: s.DefaultCalendar}
	out.Calendars = append([]CalendarProfile(nil), s.Calendars...)
	return out
}

// ProfileRepository persists the credential store as a single snapshot.
// Load returns an empty snapshot when nothing has been saved yet.
type ProfileRepository interface {
	Load(ctx context.Context) (*ProfileSnapshot, error)
	Save(ctx context.Context, snap *ProfileSnapshot) error
}

// sealSnapshot returns a copy with every API key in its stored form.
func sealSnapshot(s *ProfileSnapshot) (*ProfileSnapshot, error) {
	out := s.Clone()
	for i := range out.Calendars {
		sealed, err := SealAPIKey(out.Calendars[i].APIKey)
		if err != nil {
			return nil, errors.Wrapf(err, "seal API key for %q", out.Calendars[i].Name)
		}
		out.Calendars[i].APIKey = sealed
	}
	return out, nil
}

// openSnapshot decrypts stored API keys in place.
func openSnapshot(s *ProfileSnapshot) error {
	for i := range s.Calendars {
		plain, err := OpenAPIKey(s.Calendars[i].APIKey)
		if err != nil {
			return errors.Wrapf(err, "profile %q", s.Calendars[i].Name)
		}
		s.Calendars[i].APIKey = plain
	}
	return nil
}
