package broker

import (
	"log"
	"sync"

	"github.com/go-faster/errors"

	"github.com/Trust-Square/luma-mcp-server/pkg/lumaapi"
)

// BootstrapProfileName names the in-memory profile seeded from LUMA_API_KEY.
const BootstrapProfileName = "default"

// ClientFactory builds an API client for one API key.
type ClientFactory func(apiKey string) (*lumaapi.Client, error)

// Session is the per-process calendar context: the profile store, the
// active selection and one API client per profile.
type Session struct {
	store        *ProfileStore
	newClient    ClientFactory
	bootstrapKey string

	mu      sync.Mutex
	active  string
	clients map[string]*sessionClient
}

type sessionClient struct {
	apiKey string
	client *lumaapi.Client
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithBootstrapKey seeds an in-memory profile when the store is empty.
func WithBootstrapKey(apiKey string) SessionOption {
	return func(s *Session) { s.bootstrapKey = apiKey }
}

// NewSession creates a session over store.
func NewSession(store *ProfileStore, newClient ClientFactory, opts ...SessionOption) *Session {
	s := &Session{
		store:     store,
		newClient: newClient,
		clients:   make(map[string]*sessionClient),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Store returns the underlying profile store.
func (s *Session) Store() *ProfileStore { return s.store }

// Bootstrapped reports whether the session runs on the LUMA_API_KEY profile.
func (s *Session) Bootstrapped() bool {
	return s.bootstrapKey != "" && s.store.Len() == 0
}

func (s *Session) bootstrapProfile() Profile {
	return Profile{
		Name:        BootstrapProfileName,
		APIKey:      s.bootstrapKey,
		Description: "From LUMA_API_KEY environment variable",
	}
}

// Active resolves the profile tools run against: the explicit selection,
// else the default, else the first profile.
func (s *Session) Active() (Profile, error) {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()

	if active != "" {
		if p, ok := s.store.Get(active); ok {
			return p, nil
		}
	}
	if def := s.store.Default(); def != "" {
		if p, ok := s.store.Get(def); ok {
			return p, nil
		}
	}
	if list := s.store.List(); len(list) > 0 {
		return list[0], nil
	}
	if s.Bootstrapped() {
		return s.bootstrapProfile(), nil
	}
	return Profile{}, ErrNoProfiles
}

// Resolve returns the named profile, or the active one when name is empty.
func (s *Session) Resolve(name string) (Profile, error) {
	if name == "" {
		return s.Active()
	}
	if p, ok := s.store.Get(name); ok {
		return p, nil
	}
	if s.Bootstrapped() && name == BootstrapProfileName {
		return s.bootstrapProfile(), nil
	}
	if s.store.Len() == 0 && !s.Bootstrapped() {
		return Profile{}, ErrNoProfiles
	}
	return Profile{}, notFound(name, s.store.snapshot())
}

// Switch makes name the active profile for this session only.
func (s *Session) Switch(name string) (Profile, error) {
	p, err := s.Resolve(name)
	if err != nil {
		return Profile{}, err
	}
	s.mu.Lock()
	s.active = p.Name
	s.mu.Unlock()
	log.Printf("[broker] switched active calendar to %q", p.Name)
	return p, nil
}

// Client returns the API client of the named (or active) profile, reusing
// the cached one while its API key is unchanged.
func (s *Session) Client(name string) (*lumaapi.Client, Profile, error) {
	p, err := s.Resolve(name)
	if err != nil {
		return nil, Profile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[p.Name]; ok && c.apiKey == p.APIKey {
		return c.client, p, nil
	}
	client, err := s.newClient(p.APIKey)
	if err != nil {
		return nil, Profile{}, errors.Wrapf(err, "create client for %q", p.Name)
	}
	s.clients[p.Name] = &sessionClient{apiKey: p.APIKey, client: client}
	return client, p, nil
}

// NewClient builds an uncached client for an arbitrary key.
func (s *Session) NewClient(apiKey string) (*lumaapi.Client, error) {
	return s.newClient(apiKey)
}

// Forget drops the cached client of name and clears it as active selection.
func (s *Session) Forget(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, name)
	if s.active == name {
		s.active = ""
	}
}
