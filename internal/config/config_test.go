package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:8000/api" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 30*time.Second {
		t.Errorf("API.Timeout = %s, want 30s", cfg.API.Timeout)
	}
	if diff := cmp.Diff(DefaultAssociationCandidates, cfg.Associations.Candidates); diff != "" {
		t.Errorf("Associations.Candidates mismatch (-want +got):\n%s", diff)
	}
	if cfg.Associations.PageSize != 1000 {
		t.Errorf("Associations.PageSize = %d, want 1000", cfg.Associations.PageSize)
	}
	if !cfg.Reconcile.Strict {
		t.Error("Reconcile.Strict = false, want true")
	}
	if cfg.DevServer.AssociationPath != "article-genres" {
		t.Errorf("DevServer.AssociationPath = %q", cfg.DevServer.AssociationPath)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "weebctl.yaml")
	content := `api:
  base_url: https://weeb.example.com/api/
  timeout: 5s
associations:
  endpoint: article-genres
reconcile:
  strict: false
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}
	t.Setenv("WEEB_ASSOCIATIONS_PAGE_SIZE", "250")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "https://weeb.example.com/api" {
		t.Errorf("API.BaseURL = %q, want trailing slash trimmed", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Errorf("API.Timeout = %s, want 5s", cfg.API.Timeout)
	}
	if cfg.Associations.Endpoint != "article-genres" {
		t.Errorf("Associations.Endpoint = %q", cfg.Associations.Endpoint)
	}
	if cfg.Associations.PageSize != 250 {
		t.Errorf("Associations.PageSize = %d, want 250 from env", cfg.Associations.PageSize)
	}
	if cfg.Reconcile.Strict {
		t.Error("Reconcile.Strict = true, want false from file")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "weebctl.yaml")
	if err := os.WriteFile(path, []byte("api: [unterminated"), 0644); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		API:          APIConfig{BaseURL: "http://x", Timeout: time.Second},
		Associations: AssociationsConfig{Candidates: []string{"article-genres"}, PageSize: 10},
		Reconcile:    ReconcileConfig{Timeout: time.Second},
		Log:          LogConfig{Level: "info", Format: "console"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "empty base url", mutate: func(c *Config) { c.API.BaseURL = "" }},
		{name: "zero timeout", mutate: func(c *Config) { c.API.Timeout = 0 }},
		{name: "zero reconcile timeout", mutate: func(c *Config) { c.Reconcile.Timeout = 0 }},
		{name: "zero page size", mutate: func(c *Config) { c.Associations.PageSize = 0 }},
		{name: "no candidates", mutate: func(c *Config) { c.Associations.Candidates = nil }},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "verbose" }},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestSessionRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	empty, err := LoadSession()
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if empty.Username != "" {
		t.Errorf("LoadSession() on missing file = %+v, want empty", empty)
	}

	s := &Session{Username: "admin", BaseURL: "http://localhost:8000/api", LastLoginAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	if err := SaveSession(s); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	got, err := LoadSession()
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}

	if err := ClearSession(); err != nil {
		t.Fatalf("ClearSession() error = %v", err)
	}
	if err := ClearSession(); err != nil {
		t.Fatalf("ClearSession() on missing file error = %v", err)
	}
}
