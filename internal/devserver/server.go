// Package devserver is a local stand-in for the back-office REST API. It
// follows the Django REST contract the CLI talks to: session cookie auth,
// double-submit CSRF, paginated list envelopes and an article-genre join
// resource whose spelling is configurable.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionCookieName = "sessionid"
	csrfCookieName    = "csrftoken"
	csrfHeader        = "X-CSRFToken"

	defaultPageSize = 10
	maxPageSize     = 1000
)

// Options select contract variants of the backend.
type Options struct {
	// AssociationPath is the join resource spelling under /api; empty means
	// the backend exposes no join resource.
	AssociationPath string
	// IgnoreArticleFilter makes the join list ignore ?article=.
	IgnoreArticleFilter bool
	// EmbedObjects renders join rows with nested article and genre objects.
	EmbedObjects bool
	// PageSize is the default page size of list endpoints.
	PageSize int
	// MaxLinkPageSize caps ?page_size= on the join list, like DRF's
	// max_page_size. Zero keeps the global cap.
	MaxLinkPageSize int
}

type Server struct {
	store  Store
	opts   Options
	logger *zap.Logger
	engine *gin.Engine

	mu       sync.RWMutex
	sessions map[string]int64 // session id -> user id
}

func New(store Store, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	opts.AssociationPath = strings.Trim(strings.TrimSpace(opts.AssociationPath), "/")

	s := &Server{
		store:    store,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]int64),
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler serving /api.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(s.sessionMiddleware(), s.csrfMiddleware())

	api.GET("/csrf/", s.csrf)
	api.POST("/auth/login/", s.login)
	api.POST("/auth/logout/", s.logout)
	api.GET("/me/", s.me)

	content := api.Group("")
	content.Use(s.managerMiddleware())

	content.GET("/articles/", s.listArticles)
	content.POST("/articles/", s.createArticle)
	content.GET("/articles/:id/", s.getArticle)
	content.PATCH("/articles/:id/", s.updateArticle)
	content.PUT("/articles/:id/", s.updateArticle)
	content.DELETE("/articles/:id/", s.deleteArticle)

	content.GET("/genres/", s.listGenres)
	content.POST("/genres/", s.createGenre)
	content.GET("/genres/:id/", s.getGenre)
	content.DELETE("/genres/:id/", s.deleteGenre)

	if p := s.opts.AssociationPath; p != "" {
		content.GET("/"+p+"/", s.listLinks)
		content.POST("/"+p+"/", s.createLink)
		content.DELETE("/"+p+"/:id/", s.deleteLink)
	}

	return r
}

// EnsureAdmin creates or resets a staff account with a bcrypt password hash.
func (s *Server) EnsureAdmin(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return errors.New("admin username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.store.SaveUser(ctx, &User{
		Username:     username,
		PasswordHash: string(hash),
		IsStaff:      true,
		IsSuperuser:  true,
		Roles:        "admin",
	})
}

// AddUser creates a non-staff account with the given roles.
func (s *Server) AddUser(ctx context.Context, username, password string, roles ...string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.store.SaveUser(ctx, &User{
		Username:     username,
		PasswordHash: string(hash),
		Roles:        strings.Join(roles, ","),
	})
}

// Seed adds a few genres when the store has none.
func (s *Server) Seed(ctx context.Context) error {
	genres, err := s.store.ListGenres(ctx)
	if err != nil {
		return err
	}
	if len(genres) > 0 {
		return nil
	}
	for _, g := range []Genre{
		{Name: "Shonen", Color: "#e4572e"},
		{Name: "Seinen", Color: "#29335c"},
		{Name: "Shojo", Color: "#f3a712"},
		{Name: "Isekai", Color: "#669bbc"},
		{Name: "Mecha", Color: "#a8c686"},
	} {
		genre := g
		if err := s.store.CreateGenre(ctx, &genre); err != nil {
			return err
		}
	}
	return nil
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dev backend listening", zap.String("addr", addr),
			zap.String("association_path", s.opts.AssociationPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}
	s.logger.Info("dev backend stopped")
	return nil
}

// session handling

func (s *Server) newSession(userID int64) string {
	sid := uuid.NewString()
	s.mu.Lock()
	s.sessions[sid] = userID
	s.mu.Unlock()
	return sid
}

func (s *Server) sessionUser(sid string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.sessions[sid]
	return id, ok
}

func (s *Server) endSession(sid string) {
	s.mu.Lock()
	delete(s.sessions, sid)
	s.mu.Unlock()
}

func newCSRFToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func setCookie(c *gin.Context, name, value string, maxAge int, httpOnly bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", false, httpOnly)
}
