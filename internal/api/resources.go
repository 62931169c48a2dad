package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/melissa98m/weeb-website-sub000/internal/models"
)

// maxPageSize is requested when a command needs every row of a small collection
const maxPageSize = 1000

// ListOptions controls paginated list requests
type ListOptions struct {
	Page     int
	PageSize int
	Search   string
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(o.PageSize))
	}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	return q
}

// ArticlePath is the detail endpoint of an article
func ArticlePath(id int64) string {
	return fmt.Sprintf("/articles/%d/", id)
}

// GenrePath is the detail endpoint of a genre
func GenrePath(id int64) string {
	return fmt.Sprintf("/genres/%d/", id)
}

// Article API methods

// ListArticles returns one page of articles and the total count.
func (c *Client) ListArticles(ctx context.Context, opts ListOptions) ([]models.Article, int, error) {
	respBody, err := c.Get(ctx, "/articles/", opts.values())
	if err != nil {
		return nil, 0, err
	}

	var articles []models.Article
	total, err := models.DecodeList(respBody, &articles)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal articles: %w", err)
	}
	return articles, total, nil
}

func (c *Client) GetArticle(ctx context.Context, id int64) (*models.Article, error) {
	respBody, err := c.Get(ctx, ArticlePath(id), nil)
	if err != nil {
		return nil, err
	}

	var article models.Article
	if err := json.Unmarshal(respBody, &article); err != nil {
		return nil, fmt.Errorf("failed to unmarshal article: %w", err)
	}
	return &article, nil
}

func (c *Client) CreateArticle(ctx context.Context, title, content, imageURL string) (*models.Article, error) {
	reqBody := map[string]interface{}{
		"title":   title,
		"content": content,
	}
	if imageURL != "" {
		reqBody["image_url"] = imageURL
	}

	respBody, err := c.Post(ctx, "/articles/", reqBody)
	if err != nil {
		return nil, err
	}

	var article models.Article
	if err := json.Unmarshal(respBody, &article); err != nil {
		return nil, fmt.Errorf("failed to unmarshal article: %w", err)
	}
	return &article, nil
}

// UpdateArticle applies a partial update (PATCH) to an article.
func (c *Client) UpdateArticle(ctx context.Context, id int64, data map[string]interface{}) (*models.Article, error) {
	respBody, err := c.Patch(ctx, ArticlePath(id), data)
	if err != nil {
		return nil, err
	}

	var article models.Article
	if err := json.Unmarshal(respBody, &article); err != nil {
		return nil, fmt.Errorf("failed to unmarshal article from update response: %w", err)
	}
	return &article, nil
}

func (c *Client) DeleteArticle(ctx context.Context, id int64) error {
	return c.Delete(ctx, ArticlePath(id))
}

// Genre API methods

// ListGenres returns every genre.
func (c *Client) ListGenres(ctx context.Context) ([]models.Genre, error) {
	respBody, err := c.Get(ctx, "/genres/", ListOptions{PageSize: maxPageSize}.values())
	if err != nil {
		return nil, err
	}

	var genres []models.Genre
	if _, err := models.DecodeList(respBody, &genres); err != nil {
		return nil, fmt.Errorf("failed to unmarshal genres: %w", err)
	}
	return genres, nil
}

func (c *Client) CreateGenre(ctx context.Context, name, color string) (*models.Genre, error) {
	reqBody := map[string]string{"name": name}
	if color != "" {
		reqBody["color"] = color
	}

	respBody, err := c.Post(ctx, "/genres/", reqBody)
	if err != nil {
		return nil, err
	}

	var genre models.Genre
	if err := json.Unmarshal(respBody, &genre); err != nil {
		return nil, fmt.Errorf("failed to unmarshal genre: %w", err)
	}
	return &genre, nil
}

func (c *Client) DeleteGenre(ctx context.Context, id int64) error {
	return c.Delete(ctx, GenrePath(id))
}
