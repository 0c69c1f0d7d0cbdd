package broker

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/go-faster/errors"

	"github.com/Trust-Square/luma-mcp-server/internal/db"
	"github.com/Trust-Square/luma-mcp-server/internal/jsonrpc"
)

// ErrNoProfiles is returned when no calendar credential is available.
var ErrNoProfiles = jsonrpc.NewError(jsonrpc.InvalidRequest,
	"No calendars configured. Use configure_profile to add a calendar API key, or set LUMA_API_KEY.")

// Profile is a named calendar credential.
type Profile struct {
	Name        string
	APIKey      string
	Description string
}

// ProfileStore holds the calendar profiles and the default selector. Every
// mutation is persisted through the repository before it becomes visible.
type ProfileStore struct {
	mu   sync.RWMutex
	repo db.ProfileRepository
	snap *db.ProfileSnapshot
}

// NewProfileStore creates an empty store backed by repo.
func NewProfileStore(repo db.ProfileRepository) *ProfileStore {
	return &ProfileStore{repo: repo, snap: &db.ProfileSnapshot{}}
}

// Load replaces the in-memory state with the persisted snapshot. A store
// file that could not be parsed has already been moved aside by the
// repository and loads as empty. Any other failure is returned and the
// store keeps its current state, so a later save cannot replace profiles
// that were merely unreadable.
func (s *ProfileStore) Load(ctx context.Context) error {
	snap, err := s.repo.Load(ctx)
	var corrupt *db.CorruptStoreError
	switch {
	case errors.As(err, &corrupt):
		log.Printf("[broker] WARNING: %v; starting with an empty profile store", err)
		snap = &db.ProfileSnapshot{}
	case err != nil:
		return errors.Wrap(err, "load profiles")
	}
	normalize(snap)

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	log.Printf("[broker] loaded %d calendar profile(s)", len(snap.Calendars))
	return nil
}

// normalize restores the default invariant on externally written data.
func normalize(snap *db.ProfileSnapshot) {
	if snap.DefaultCalendar != "" && indexOf(snap, snap.DefaultCalendar) < 0 {
		snap.DefaultCalendar = ""
	}
	if snap.DefaultCalendar == "" && len(snap.Calendars) > 0 {
		snap.DefaultCalendar = snap.Calendars[0].Name
	}
}

func indexOf(snap *db.ProfileSnapshot, name string) int {
	for i, c := range snap.Calendars {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (s *ProfileStore) snapshot() *db.ProfileSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

func toProfile(c db.CalendarProfile) Profile {
	return Profile{Name: c.Name, APIKey: c.APIKey, Description: c.Description}
}

// List returns the profiles in insertion order.
func (s *ProfileStore) List() []Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Profile, 0, len(s.snap.Calendars))
	for _, c := range s.snap.Calendars {
		out = append(out, toProfile(c))
	}
	return out
}

// Len returns the number of profiles.
func (s *ProfileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snap.Calendars)
}

// Get looks up a profile by name.
func (s *ProfileStore) Get(name string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.snap, name); i >= 0 {
		return toProfile(s.snap.Calendars[i]), true
	}
	return Profile{}, false
}

// Default returns the default profile name, or "" when the store is empty.
func (s *ProfileStore) Default() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.DefaultCalendar
}

// Names returns the profile names in insertion order.
func (s *ProfileStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.snap.Calendars))
	for _, c := range s.snap.Calendars {
		names = append(names, c.Name)
	}
	return names
}

// UpsertResult describes the outcome of Upsert.
type UpsertResult struct {
	Created   bool
	IsDefault bool
}

// Upsert inserts or overwrites a profile, keeping the position of an existing
// one. The first profile added becomes the default. An empty description
// keeps the stored one.
func (s *ProfileStore) Upsert(ctx context.Context, p Profile, setDefault bool) (UpsertResult, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return UpsertResult{}, jsonrpc.NewError(jsonrpc.InvalidParams, "Profile name must not be empty")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return UpsertResult{}, jsonrpc.NewError(jsonrpc.InvalidParams, "API key must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap.Clone()
	var res UpsertResult
	if i := indexOf(next, p.Name); i >= 0 {
		next.Calendars[i].APIKey = p.APIKey
		if p.Description != "" {
			next.Calendars[i].Description = p.Description
		}
	} else {
		res.Created = true
		next.Calendars = append(next.Calendars, db.CalendarProfile{
			Name:        p.Name,
			APIKey:      p.APIKey,
			Description: p.Description,
			Position:    len(next.Calendars),
		})
	}
	if setDefault || next.DefaultCalendar == "" {
		next.DefaultCalendar = p.Name
	}
	res.IsDefault = next.DefaultCalendar == p.Name

	if err := s.commit(ctx, next); err != nil {
		return UpsertResult{}, err
	}
	return res, nil
}

// RemoveResult describes the outcome of Remove.
type RemoveResult struct {
	Removed    bool
	WasDefault bool
	NewDefault string
}

// Remove deletes a profile. Without confirm it only reports what would be
// removed. Removing the default promotes the first remaining profile.
func (s *ProfileStore) Remove(ctx context.Context, name string, confirm bool) (RemoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.snap, name)
	if i < 0 {
		return RemoveResult{}, notFound(name, s.snap)
	}
	res := RemoveResult{WasDefault: s.snap.DefaultCalendar == name}
	if !confirm {
		res.NewDefault = s.snap.DefaultCalendar
		return res, nil
	}

	next := s.snap.Clone()
	next.Calendars = append(next.Calendars[:i:i], next.Calendars[i+1:]...)
	if res.WasDefault {
		next.DefaultCalendar = ""
		if len(next.Calendars) > 0 {
			next.DefaultCalendar = next.Calendars[0].Name
		}
	}
	if err := s.commit(ctx, next); err != nil {
		return RemoveResult{}, err
	}
	res.Removed = true
	res.NewDefault = next.DefaultCalendar
	return res, nil
}

// SetDefault persists name as the default profile.
func (s *ProfileStore) SetDefault(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if indexOf(s.snap, name) < 0 {
		return notFound(name, s.snap)
	}
	if s.snap.DefaultCalendar == name {
		return nil
	}
	next := s.snap.Clone()
	next.DefaultCalendar = name
	return s.commit(ctx, next)
}

// commit persists next and swaps it in. Caller holds s.mu.
func (s *ProfileStore) commit(ctx context.Context, next *db.ProfileSnapshot) error {
	for i := range next.Calendars {
		next.Calendars[i].Position = i
	}
	if err := s.repo.Save(ctx, next); err != nil {
		return errors.Wrap(err, "save profiles")
	}
	s.snap = next
	return nil
}

func notFound(name string, snap *db.ProfileSnapshot) *jsonrpc.Error {
	names := make([]string, 0, len(snap.Calendars))
	for _, c := range snap.Calendars {
		names = append(names, c.Name)
	}
	available := "none"
	if len(names) > 0 {
		available = strings.Join(names, ", ")
	}
	return jsonrpc.NewError(jsonrpc.InvalidParams, "Calendar profile %q not found. Available profiles: %s", name, available)
}
