package browse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrNoCachedSession is returned by Load when no cookie file exists for the
// service yet.
var ErrNoCachedSession = errors.New("browse: no cached session")

// CookieStore persists cookie jars per service under one directory. The
// directory is shared between concurrently running sessions, so every read
// and write takes a file lock to keep concurrent writers from corrupting
// the jar.
type CookieStore struct {
	dir string
}

// NewCookieStore creates the directory if needed.
func NewCookieStore(dir string) (*CookieStore, error) {
	if dir == "" {
		return nil, errors.New("browse: cookie store dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("browse: create cookie store dir: %w", err)
	}
	return &CookieStore{dir: dir}, nil
}

// Save writes the service's cookie jar, replacing any previous one.
func (s *CookieStore) Save(service string, cookies []Cookie) error {
	path := s.path(service)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("browse: lock cookie jar: %w", err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("browse: encode cookie jar: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("browse: write cookie jar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("browse: replace cookie jar: %w", err)
	}
	return nil
}

// Load reads the service's cookie jar. Returns ErrNoCachedSession when the
// service has never been saved.
func (s *CookieStore) Load(service string) ([]Cookie, error) {
	path := s.path(service)

	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("browse: lock cookie jar: %w", err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoCachedSession
		}
		return nil, fmt.Errorf("browse: read cookie jar: %w", err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("browse: decode cookie jar: %w", err)
	}
	return cookies, nil
}

// Discard removes the service's cached jar, if any.
func (s *CookieStore) Discard(service string) error {
	path := s.path(service)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("browse: lock cookie jar: %w", err)
	}
	defer lock.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("browse: remove cookie jar: %w", err)
	}
	return nil
}

func (s *CookieStore) path(service string) string {
	return filepath.Join(s.dir, service+".json")
}
