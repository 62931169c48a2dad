package devserver

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned by stores for missing records.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a unique constraint would be violated.
var ErrConflict = errors.New("record already exists")

// Article is the stored article row.
type Article struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Title     string `gorm:"not null"`
	Content   string
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Article) TableName() string {
	return "articles"
}

// Genre is the stored genre row.
type Genre struct {
	ID    int64  `gorm:"primaryKey;autoIncrement"`
	Name  string `gorm:"not null;uniqueIndex"`
	Color string
}

func (Genre) TableName() string {
	return "genres"
}

// ArticleGenre is the explicit join model; each link has its own id.
type ArticleGenre struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	ArticleID int64 `gorm:"index;not null"`
	GenreID   int64 `gorm:"index;not null"`
}

func (ArticleGenre) TableName() string {
	return "article_genres"
}

// User is a back-office account. Roles is a comma separated list.
type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"not null;uniqueIndex"`
	Email        string
	PasswordHash string `gorm:"not null"`
	IsStaff      bool
	IsSuperuser  bool
	Roles        string
}

func (User) TableName() string {
	return "users"
}

// RoleList splits Roles.
func (u *User) RoleList() []string {
	var out []string
	for _, r := range strings.Split(u.Roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Store persists the back-office content.
type Store interface {
	ListArticles(ctx context.Context, search string) ([]Article, error)
	GetArticle(ctx context.Context, id int64) (*Article, error)
	CreateArticle(ctx context.Context, a *Article) error
	UpdateArticle(ctx context.Context, a *Article) error
	DeleteArticle(ctx context.Context, id int64) error

	ListGenres(ctx context.Context) ([]Genre, error)
	GetGenre(ctx context.Context, id int64) (*Genre, error)
	CreateGenre(ctx context.Context, g *Genre) error
	DeleteGenre(ctx context.Context, id int64) error

	// ListLinks filters by article and genre; zero means any.
	ListLinks(ctx context.Context, articleID, genreID int64) ([]ArticleGenre, error)
	CreateLink(ctx context.Context, l *ArticleGenre) error
	DeleteLink(ctx context.Context, id int64) error
	// SetArticleGenres replaces every link of the article.
	SetArticleGenres(ctx context.Context, articleID int64, genreIDs []int64) error

	GetUser(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	SaveUser(ctx context.Context, u *User) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu sync.RWMutex

	articles map[int64]Article
	genres   map[int64]Genre
	links    map[int64]ArticleGenre
	users    map[int64]User
	lastID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		articles: make(map[int64]Article),
		genres:   make(map[int64]Genre),
		links:    make(map[int64]ArticleGenre),
		users:    make(map[int64]User),
	}
}

func (s *MemoryStore) nextID() int64 {
	s.lastID++
	return s.lastID
}

func (s *MemoryStore) ListArticles(ctx context.Context, search string) ([]Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]Article, 0, len(s.articles))
	for _, a := range s.articles {
		if search != "" &&
			!strings.Contains(strings.ToLower(a.Title), search) &&
			!strings.Contains(strings.ToLower(a.Content), search) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetArticle(ctx context.Context, id int64) (*Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) CreateArticle(ctx context.Context, a *Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	a.ID = s.nextID()
	a.CreatedAt, a.UpdatedAt = now, now
	s.articles[a.ID] = *a
	return nil
}

func (s *MemoryStore) UpdateArticle(ctx context.Context, a *Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.articles[a.ID]
	if !ok {
		return ErrNotFound
	}
	a.CreatedAt = old.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	s.articles[a.ID] = *a
	return nil
}

func (s *MemoryStore) DeleteArticle(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[id]; !ok {
		return ErrNotFound
	}
	delete(s.articles, id)
	for lid, l := range s.links {
		if l.ArticleID == id {
			delete(s.links, lid)
		}
	}
	return nil
}

func (s *MemoryStore) ListGenres(ctx context.Context) ([]Genre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Genre, 0, len(s.genres))
	for _, g := range s.genres {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetGenre(ctx context.Context, id int64) (*Genre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.genres[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &g, nil
}

func (s *MemoryStore) CreateGenre(ctx context.Context, g *Genre) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.genres {
		if strings.EqualFold(existing.Name, g.Name) {
			return ErrConflict
		}
	}
	g.ID = s.nextID()
	s.genres[g.ID] = *g
	return nil
}

func (s *MemoryStore) DeleteGenre(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.genres[id]; !ok {
		return ErrNotFound
	}
	delete(s.genres, id)
	for lid, l := range s.links {
		if l.GenreID == id {
			delete(s.links, lid)
		}
	}
	return nil
}

func (s *MemoryStore) ListLinks(ctx context.Context, articleID, genreID int64) ([]ArticleGenre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ArticleGenre, 0)
	for _, l := range s.links {
		if articleID > 0 && l.ArticleID != articleID {
			continue
		}
		if genreID > 0 && l.GenreID != genreID {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateLink(ctx context.Context, l *ArticleGenre) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[l.ArticleID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.genres[l.GenreID]; !ok {
		return ErrNotFound
	}
	for _, existing := range s.links {
		if existing.ArticleID == l.ArticleID && existing.GenreID == l.GenreID {
			return ErrConflict
		}
	}
	l.ID = s.nextID()
	s.links[l.ID] = *l
	return nil
}

func (s *MemoryStore) DeleteLink(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[id]; !ok {
		return ErrNotFound
	}
	delete(s.links, id)
	return nil
}

func (s *MemoryStore) SetArticleGenres(ctx context.Context, articleID int64, genreIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[articleID]; !ok {
		return ErrNotFound
	}
	for _, gid := range genreIDs {
		if _, ok := s.genres[gid]; !ok {
			return ErrNotFound
		}
	}
	for lid, l := range s.links {
		if l.ArticleID == articleID {
			delete(s.links, lid)
		}
	}
	seen := make(map[int64]bool, len(genreIDs))
	for _, gid := range genreIDs {
		if seen[gid] {
			continue
		}
		seen[gid] = true
		id := s.nextID()
		s.links[id] = ArticleGenre{ID: id, ArticleID: articleID, GenreID: gid}
	}
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// SaveUser inserts the user, or replaces the one with the same username.
func (s *MemoryStore) SaveUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.users {
		if existing.Username == u.Username {
			u.ID = id
			s.users[id] = *u
			return nil
		}
	}
	u.ID = s.nextID()
	s.users[u.ID] = *u
	return nil
}
