package devserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore is a Store backed by gorm.
type GormStore struct {
	DB *gorm.DB
}

// OpenPostgres connects to PostgreSQL and migrates the schema.
func OpenPostgres(dsn string, debug bool) (*GormStore, error) {
	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQL DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)

	return NewGormStore(db)
}

// NewGormStore wraps an open connection and migrates the schema.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Article{}, &Genre{}, &ArticleGenre{}, &User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &GormStore{DB: db}, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) ListArticles(ctx context.Context, search string) ([]Article, error) {
	var articles []Article
	q := s.DB.WithContext(ctx).Order("id")
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ?", like, like)
	}
	if err := q.Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

func (s *GormStore) GetArticle(ctx context.Context, id int64) (*Article, error) {
	var a Article
	if err := s.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *GormStore) CreateArticle(ctx context.Context, a *Article) error {
	return s.DB.WithContext(ctx).Create(a).Error
}

func (s *GormStore) UpdateArticle(ctx context.Context, a *Article) error {
	res := s.DB.WithContext(ctx).Model(&Article{ID: a.ID}).Updates(map[string]interface{}{
		"title":     a.Title,
		"content":   a.Content,
		"image_url": a.ImageURL,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteArticle(ctx context.Context, id int64) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("article_id = ?", id).Delete(&ArticleGenre{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Article{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *GormStore) ListGenres(ctx context.Context) ([]Genre, error) {
	var genres []Genre
	if err := s.DB.WithContext(ctx).Order("id").Find(&genres).Error; err != nil {
		return nil, err
	}
	return genres, nil
}

func (s *GormStore) GetGenre(ctx context.Context, id int64) (*Genre, error) {
	var g Genre
	if err := s.DB.WithContext(ctx).First(&g, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (s *GormStore) CreateGenre(ctx context.Context, g *Genre) error {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&Genre{}).Where("LOWER(name) = ?", strings.ToLower(g.Name)).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrConflict
	}
	return s.DB.WithContext(ctx).Create(g).Error
}

func (s *GormStore) DeleteGenre(ctx context.Context, id int64) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("genre_id = ?", id).Delete(&ArticleGenre{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Genre{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *GormStore) ListLinks(ctx context.Context, articleID, genreID int64) ([]ArticleGenre, error) {
	var links []ArticleGenre
	q := s.DB.WithContext(ctx).Order("id")
	if articleID > 0 {
		q = q.Where("article_id = ?", articleID)
	}
	if genreID > 0 {
		q = q.Where("genre_id = ?", genreID)
	}
	if err := q.Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

func (s *GormStore) CreateLink(ctx context.Context, l *ArticleGenre) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&Article{}, l.ArticleID).Error; err != nil {
			return notFound(err)
		}
		if err := tx.First(&Genre{}, l.GenreID).Error; err != nil {
			return notFound(err)
		}
		var count int64
		if err := tx.Model(&ArticleGenre{}).
			Where("article_id = ? AND genre_id = ?", l.ArticleID, l.GenreID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrConflict
		}
		return tx.Create(l).Error
	})
}

func (s *GormStore) DeleteLink(ctx context.Context, id int64) error {
	res := s.DB.WithContext(ctx).Delete(&ArticleGenre{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) SetArticleGenres(ctx context.Context, articleID int64, genreIDs []int64) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&Article{}, articleID).Error; err != nil {
			return notFound(err)
		}
		unique := make([]int64, 0, len(genreIDs))
		seen := make(map[int64]bool, len(genreIDs))
		for _, gid := range genreIDs {
			if !seen[gid] {
				seen[gid] = true
				unique = append(unique, gid)
			}
		}
		if len(unique) > 0 {
			var count int64
			if err := tx.Model(&Genre{}).Where("id IN ?", unique).Count(&count).Error; err != nil {
				return err
			}
			if int(count) != len(unique) {
				return ErrNotFound
			}
		}
		if err := tx.Where("article_id = ?", articleID).Delete(&ArticleGenre{}).Error; err != nil {
			return err
		}
		for _, gid := range unique {
			if err := tx.Create(&ArticleGenre{ArticleID: articleID, GenreID: gid}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) GetUser(ctx context.Context, username string) (*User, error) {
	var u User
	if err := s.DB.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *GormStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	var u User
	if err := s.DB.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *GormStore) SaveUser(ctx context.Context, u *User) error {
	existing, err := s.GetUser(ctx, u.Username)
	switch {
	case err == nil:
		u.ID = existing.ID
		return s.DB.WithContext(ctx).Save(u).Error
	case errors.Is(err, ErrNotFound):
		return s.DB.WithContext(ctx).Create(u).Error
	default:
		return err
	}
}
