// Package credentials persists the backend session cookies between CLI runs.
// The system keyring is used when available; headless systems fall back to a
// 0600 file under ~/.weebctl.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/melissa98m/weeb-website-sub000/internal/config"
)

const (
	keyringService   = "weebctl"
	fallbackFileName = ".session"
)

// ErrNotFound means no session is stored for the base URL.
var ErrNotFound = errors.New("no stored session")

// cookie is the persisted subset of http.Cookie.
type cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Path  string `json:"path,omitempty"`
}

// Store saves cookies keyed by backend base URL.
type Store struct {
	service      string
	fallbackPath string

	mu         sync.Mutex
	checked    bool
	useKeyring bool
}

// NewStore returns a store using the default service name and fallback file.
func NewStore() (*Store, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return NewStoreAt(keyringService, filepath.Join(dir, fallbackFileName)), nil
}

// NewStoreAt returns a store with an explicit keyring service and fallback path.
func NewStoreAt(service, fallbackPath string) *Store {
	return &Store{service: service, fallbackPath: fallbackPath}
}

// keyringAvailable probes the system keyring once.
func (s *Store) keyringAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checked {
		return s.useKeyring
	}
	s.checked = true

	testKey := s.service + "-keyring-test"
	if err := keyring.Set(s.service, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(s.service, testKey)
	s.useKeyring = true
	return true
}

// Mode describes the storage currently in use.
func (s *Store) Mode() string {
	if s.keyringAvailable() {
		return "system-keyring"
	}
	return "file-based (keyring unavailable)"
}

// Save stores the cookies for baseURL, replacing any previous session.
func (s *Store) Save(baseURL string, cookies []*http.Cookie) error {
	stored := make([]cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		stored = append(stored, cookie{Name: c.Name, Value: c.Value, Path: c.Path})
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	key := normalizeKey(baseURL)
	if s.keyringAvailable() {
		if err := keyring.Set(s.service, key, string(data)); err != nil {
			return fmt.Errorf("failed to store session in keyring: %w", err)
		}
		return nil
	}

	sessions, err := s.readFallback()
	if err != nil {
		return err
	}
	sessions[key] = stored
	return s.writeFallback(sessions)
}

// Load returns the cookies stored for baseURL or ErrNotFound.
func (s *Store) Load(baseURL string) ([]*http.Cookie, error) {
	key := normalizeKey(baseURL)

	var stored []cookie
	if s.keyringAvailable() {
		data, err := keyring.Get(s.service, key)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read session from keyring: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &stored); err != nil {
			return nil, fmt.Errorf("failed to decode session: %w", err)
		}
	} else {
		sessions, err := s.readFallback()
		if err != nil {
			return nil, err
		}
		var ok bool
		if stored, ok = sessions[key]; !ok {
			return nil, ErrNotFound
		}
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path})
	}
	return cookies, nil
}

// Delete removes the session for baseURL. Deleting a missing session is fine.
func (s *Store) Delete(baseURL string) error {
	key := normalizeKey(baseURL)

	if s.keyringAvailable() {
		err := keyring.Delete(s.service, key)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to delete session from keyring: %w", err)
		}
	}

	sessions, err := s.readFallback()
	if err != nil {
		return err
	}
	if _, ok := sessions[key]; !ok {
		return nil
	}
	delete(sessions, key)
	return s.writeFallback(sessions)
}

func normalizeKey(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}

// Fallback file operations for headless systems

func (s *Store) readFallback() (map[string][]cookie, error) {
	sessions := map[string][]cookie{}
	data, err := os.ReadFile(s.fallbackPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sessions, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	if len(data) == 0 {
		return sessions, nil
	}
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode session file: %w", err)
	}
	return sessions, nil
}

func (s *Store) writeFallback(sessions map[string][]cookie) error {
	if len(sessions) == 0 {
		if err := os.Remove(s.fallbackPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.fallbackPath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return err
	}
	// owner read/write only
	if err := os.WriteFile(s.fallbackPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}
