package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

const (
	configDir       = ".weebctl"
	sessionFileName = "session.json"
)

// Session is the non-secret state kept between CLI invocations.
// Cookies live in the credential store, not here.
type Session struct {
	Username    string    `json:"username"`
	BaseURL     string    `json:"base_url"`
	LastLoginAt time.Time `json:"last_login_at"`
}

// Dir returns the per-user directory (~/.weebctl)
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir), nil
}

// GetSessionPath returns the path to the session file (~/.weebctl/session.json)
func GetSessionPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, sessionFileName), nil
}

// LoadSession loads the session file. A missing file yields an empty session.
func LoadSession() (*Session, error) {
	path, err := GetSessionPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Session{}, nil
		}
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func SaveSession(s *Session) error {
	path, err := GetSessionPath()
	if err != nil {
		return err
	}

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// ClearSession removes the session file; a missing file is fine.
func ClearSession() error {
	path, err := GetSessionPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
