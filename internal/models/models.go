package models

import (
	"strings"
	"time"
)

// Article represents a blog article managed from the back-office
type Article struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	ImageURL  string     `json:"image_url,omitempty"`
	Genres    []Ref      `json:"genres,omitempty"` // Embedded genre objects or raw ids depending on the serializer
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// GenreIDs returns the resolvable genre ids embedded in the article, in order.
func (a *Article) GenreIDs() []int64 {
	ids := make([]int64, 0, len(a.Genres))
	for _, ref := range a.Genres {
		if id, ok := ref.Resolve(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Genre represents an article category
type Genre struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"` // Hex color for UI badges
}

// Association is a single article-to-genre link row.
// ID is nil when the backend did not expose a primary key for the row.
type Association struct {
	ID      *int64 `json:"id,omitempty"`
	Article int64  `json:"article"`
	Genre   int64  `json:"genre"`
}

// User is the authenticated back-office account returned by the me endpoint
type User struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email,omitempty"`
	IsStaff     bool     `json:"is_staff"`
	IsSuperuser bool     `json:"is_superuser"`
	Roles       []string `json:"roles,omitempty"`
}

// CanManageContent reports whether the user may edit articles, genres and their links.
func (u *User) CanManageContent() bool {
	if u == nil {
		return false
	}
	if u.IsStaff || u.IsSuperuser {
		return true
	}
	for _, role := range u.Roles {
		switch strings.ToLower(role) {
		case "admin", "editor":
			return true
		}
	}
	return false
}
