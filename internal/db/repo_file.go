package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
)

// CorruptStoreError reports a store file that could not be parsed and was
// moved aside so the next save cannot overwrite it.
type CorruptStoreError struct {
	Path    string
	MovedTo string
	Err     error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("parse %s (moved to %s): %v", e.Path, e.MovedTo, e.Err)
}

func (e *CorruptStoreError) Unwrap() error { return e.Err }

// FileRepository stores the snapshot as one JSON document.
type FileRepository struct {
	path string
}

// NewFileRepository returns a repository backed by the file at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Path returns the backing file path.
func (r *FileRepository) Path() string { return r.path }

// Load reads the snapshot. A missing file yields an empty snapshot. A
// malformed one is renamed to <path>.corrupt-<timestamp> and reported as
// *CorruptStoreError. Any other failure, including an encrypted key that
// cannot be opened, is returned as is and leaves the file untouched.
func (r *FileRepository) Load(_ context.Context) (*ProfileSnapshot, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return &ProfileSnapshot{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", r.path)
	}
	var snap ProfileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, r.quarantine(err)
	}
	for i := range snap.Calendars {
		snap.Calendars[i].Position = i
	}
	if err := openSnapshot(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *FileRepository) quarantine(parseErr error) error {
	moved := r.path + ".corrupt-" + time.Now().UTC().Format("20060102T150405.000000000")
	if err := os.Rename(r.path, moved); err != nil {
		return errors.Wrapf(err, "parse %s: %v; move aside", r.path, parseErr)
	}
	return &CorruptStoreError{Path: r.path, MovedTo: moved, Err: parseErr}
}

// Save writes the snapshot atomically with owner-only permissions.
func (r *FileRepository) Save(_ context.Context, snap *ProfileSnapshot) error {
	sealed, err := sealSnapshot(snap)
	if err != nil {
		return err
	}
	if sealed.Calendars == nil {
		sealed.Calendars = []CalendarProfile{}
	}
	data, err := json.MarshalIndent(sealed, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode profiles")
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".calendars-*.json")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "chmod temp file")
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return errors.Wrapf(err, "replace %s", r.path)
	}
	return nil
}
