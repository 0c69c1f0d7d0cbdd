package broker

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Trust-Square/luma-mcp-server/internal/db"
	"github.com/Trust-Square/luma-mcp-server/internal/jsonrpc"
)

// memRepo is an in-memory db.ProfileRepository.
type memRepo struct {
	snap    *db.ProfileSnapshot
	saves   int
	loadErr error
	saveErr error
}

func (r *memRepo) Load(context.Context) (*db.ProfileSnapshot, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.snap.Clone(), nil
}

func (r *memRepo) Save(_ context.Context, s *db.ProfileSnapshot) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.snap = s.Clone()
	return nil
}

func newStore(t *testing.T, profiles ...string) (*ProfileStore, *memRepo) {
	t.Helper()
	repo := &memRepo{snap: &db.ProfileSnapshot{}}
	s := NewProfileStore(repo)
	for _, name := range profiles {
		_, err := s.Upsert(context.Background(), Profile{Name: name, APIKey: "key-" + name}, false)
		require.NoError(t, err)
	}
	return s, repo
}

func rpcCode(t *testing.T, err error) int {
	t.Helper()
	var rpcErr *jsonrpc.Error
	require.True(t, errors.As(err, &rpcErr), "expected *jsonrpc.Error, got %T", err)
	return rpcErr.Code
}

func TestUpsertFirstProfileBecomesDefault(t *testing.T) {
	s, repo := newStore(t)
	res, err := s.Upsert(context.Background(), Profile{Name: "work", APIKey: "k"}, false)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.IsDefault)
	assert.Equal(t, "work", s.Default())
	assert.Equal(t, "work", repo.snap.DefaultCalendar, "persisted immediately")

	res, err = s.Upsert(context.Background(), Profile{Name: "home", APIKey: "k2"}, false)
	require.NoError(t, err)
	assert.False(t, res.IsDefault)
	assert.Equal(t, "work", s.Default())

	res, err = s.Upsert(context.Background(), Profile{Name: "home", APIKey: "k2"}, true)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.True(t, res.IsDefault)
	assert.Equal(t, "home", s.Default())
}

func TestUpsertPreservesPosition(t *testing.T) {
	s, _ := newStore(t, "a", "b", "c")
	_, err := s.Upsert(context.Background(), Profile{Name: "b", APIKey: "new", Description: "updated"}, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, s.Names())
	p, ok := s.Get("b")
	require.True(t, ok)
	assert.Equal(t, "new", p.APIKey)
	assert.Equal(t, "updated", p.Description)

	_, err = s.Upsert(context.Background(), Profile{Name: "b", APIKey: "newer"}, false)
	require.NoError(t, err)
	p, _ = s.Get("b")
	assert.Equal(t, "updated", p.Description, "empty description keeps the stored one")
}

func TestUpsertValidation(t *testing.T) {
	s, repo := newStore(t)
	_, err := s.Upsert(context.Background(), Profile{Name: "  ", APIKey: "k"}, false)
	assert.Equal(t, jsonrpc.InvalidParams, rpcCode(t, err))
	_, err = s.Upsert(context.Background(), Profile{Name: "x"}, false)
	assert.Equal(t, jsonrpc.InvalidParams, rpcCode(t, err))
	assert.Zero(t, repo.saves)
}

func TestUpsertSaveFailureKeepsState(t *testing.T) {
	s, repo := newStore(t, "a")
	repo.saveErr = errors.New("disk full")
	_, err := s.Upsert(context.Background(), Profile{Name: "b", APIKey: "k"}, true)
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, s.Names())
	assert.Equal(t, "a", s.Default())
}

func TestRemoveRequiresConfirm(t *testing.T) {
	s, repo := newStore(t, "a", "b")
	saves := repo.saves

	res, err := s.Remove(context.Background(), "a", false)
	require.NoError(t, err)
	assert.False(t, res.Removed)
	assert.True(t, res.WasDefault)
	assert.Equal(t, []string{"a", "b"}, s.Names())
	assert.Equal(t, saves, repo.saves, "unconfirmed remove never persists")
}

func TestRemoveDefaultPromotesFirstRemaining(t *testing.T) {
	s, _ := newStore(t, "a", "b", "c")

	res, err := s.Remove(context.Background(), "a", true)
	require.NoError(t, err)
	assert.True(t, res.Removed)
	assert.Equal(t, "b", res.NewDefault)
	assert.Equal(t, "b", s.Default())

	_, err = s.Remove(context.Background(), "c", true)
	require.NoError(t, err)
	assert.Equal(t, "b", s.Default(), "removing a non-default keeps the default")

	res, err = s.Remove(context.Background(), "b", true)
	require.NoError(t, err)
	assert.Empty(t, res.NewDefault)
	assert.Empty(t, s.Default())
	assert.Zero(t, s.Len())
}

func TestRemoveUnknown(t *testing.T) {
	s, _ := newStore(t, "a")
	_, err := s.Remove(context.Background(), "zzz", true)
	assert.Equal(t, jsonrpc.InvalidParams, rpcCode(t, err))
	assert.Contains(t, err.Error(), "Available profiles: a")
}

func TestSetDefault(t *testing.T) {
	s, repo := newStore(t, "a", "b")
	require.NoError(t, s.SetDefault(context.Background(), "b"))
	assert.Equal(t, "b", repo.snap.DefaultCalendar)
	assert.Error(t, s.SetDefault(context.Background(), "missing"))
}

func TestLoadFailureKeepsStoreAndSavedProfiles(t *testing.T) {
	repo := &memRepo{loadErr: errors.New("connection refused")}
	s := NewProfileStore(repo)
	err := s.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Zero(t, repo.saves)
}

func TestLoadEncryptedStoreWithoutKey(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	require.NoError(t, db.InitEncryptionKey(base64.StdEncoding.EncodeToString(key)))
	t.Cleanup(func() { _ = db.InitEncryptionKey("") })

	path := filepath.Join(t.TempDir(), "calendars.json")
	first := NewProfileStore(db.NewFileRepository(path))
	require.NoError(t, first.Load(context.Background()))
	for _, name := range []string{"work", "community"} {
		_, err := first.Upsert(context.Background(), Profile{Name: name, APIKey: "k-" + name}, false)
		require.NoError(t, err)
	}
	saved, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, db.InitEncryptionKey(""))
	restarted := NewProfileStore(db.NewFileRepository(path))
	err = restarted.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), db.EncryptionKeyEnv)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, saved, after, "stored profiles are left untouched")
}

func TestLoadMalformedFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calendars.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"calendars": [`), 0o600))

	s := NewProfileStore(db.NewFileRepository(path))
	require.NoError(t, s.Load(context.Background()))
	assert.Zero(t, s.Len())

	_, err := s.Upsert(context.Background(), Profile{Name: "new", APIKey: "k-new"}, false)
	require.NoError(t, err)

	moved, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, moved, 1)
	data, err := os.ReadFile(moved[0])
	require.NoError(t, err)
	assert.Equal(t, `{"calendars": [`, string(data))
}

func TestLoadRepairsDanglingDefault(t *testing.T) {
	repo := &memRepo{snap: &db.ProfileSnapshot{
		Calendars:       []db.CalendarProfile{{Name: "x", APIKey: "k"}, {Name: "y", APIKey: "k"}},
		DefaultCalendar: "gone",
	}}
	s := NewProfileStore(repo)
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, "x", s.Default())
}

func TestStoreWithFileRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendars.json")
	s := NewProfileStore(db.NewFileRepository(path))
	require.NoError(t, s.Load(context.Background()))
	_, err := s.Upsert(context.Background(), Profile{Name: "work", APIKey: "k", Description: "Work"}, false)
	require.NoError(t, err)

	reloaded := NewProfileStore(db.NewFileRepository(path))
	require.NoError(t, reloaded.Load(context.Background()))
	p, ok := reloaded.Get("work")
	require.True(t, ok)
	assert.Equal(t, "Work", p.Description)
	assert.Equal(t, "work", reloaded.Default())
}
