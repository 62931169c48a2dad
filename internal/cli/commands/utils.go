package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/melissa98m/weeb-website-sub000/internal/api"
	"github.com/melissa98m/weeb-website-sub000/internal/config"
	"github.com/melissa98m/weeb-website-sub000/internal/credentials"
	"github.com/melissa98m/weeb-website-sub000/internal/logging"
	"github.com/melissa98m/weeb-website-sub000/internal/reconcile"
)

// GlobalFlags are accepted before any command.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to a weebctl.yaml config file",
			EnvVars: []string{"WEEB_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "api-url",
			Usage: "back-office API base URL (overrides api.base_url)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log level (debug|info|warn|error)",
		},
		&cli.BoolFlag{
			Name:  "lenient",
			Usage: "report failed genre changes without exiting non-zero",
		},
	}
}

// env bundles what a command needs to talk to the backend.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	client *api.Client
	creds  *credentials.Store
}

// loadConfig reads the config and applies the global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if u := strings.TrimSpace(c.String("api-url")); u != "" {
		cfg.API.BaseURL = strings.TrimRight(u, "/")
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if c.Bool("lenient") {
		cfg.Reconcile.Strict = false
	}
	return cfg, cfg.Validate()
}

func newEnv(c *cli.Context) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	creds, err := credentials.NewStore()
	if err != nil {
		return nil, fmt.Errorf("could not open credential store: %w", err)
	}

	client := api.NewClient(cfg.API, logger)
	cookies, err := creds.Load(cfg.API.BaseURL)
	switch {
	case err == nil:
		client.RestoreSession(cookies)
	case !errors.Is(err, credentials.ErrNotFound):
		logger.Warn("could not restore session", zap.Error(err))
	}

	return &env{cfg: cfg, logger: logger, client: client, creds: creds}, nil
}

func (e *env) close() {
	_ = e.logger.Sync()
}

// saveSession persists the client's cookies and the non-secret session file.
func (e *env) saveSession(username string) error {
	if err := e.creds.Save(e.cfg.API.BaseURL, e.client.SessionCookies()); err != nil {
		return fmt.Errorf("could not store session: %w", err)
	}
	return config.SaveSession(&config.Session{
		Username:    username,
		BaseURL:     e.cfg.API.BaseURL,
		LastLoginAt: time.Now(),
	})
}

func (e *env) locator() reconcile.Locator {
	if e.cfg.Associations.Endpoint != "" {
		return reconcile.StaticLocator{Endpoint: e.cfg.Associations.Endpoint}
	}
	return reconcile.NewProbingLocator(e.client, e.cfg.Associations.Candidates, e.cfg.Associations.PageSize, e.logger)
}

func (e *env) reconciler() *reconcile.Reconciler {
	return reconcile.New(e.client, e.locator(), e.logger, reconcile.Options{
		PageSize: e.cfg.Associations.PageSize,
		Timeout:  e.cfg.Reconcile.Timeout,
		Strict:   e.cfg.Reconcile.Strict,
	})
}

func parseID(s, what string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("%s ID is required", what)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", what, s)
	}
	return id, nil
}

// pageCount returns the number of pages needed for total items.
func pageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

func truncateString(s string, maxLen int) string {
	if maxLen <= 3 || len([]rune(s)) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen-3]) + "..."
}
