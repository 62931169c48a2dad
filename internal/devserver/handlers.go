package devserver

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/melissa98m/weeb-website-sub000/internal/models"
)

// rendering

func toAPIUser(u *User) *models.User {
	if u == nil {
		return nil
	}
	return &models.User{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		Roles:       u.RoleList(),
	}
}

func genreJSON(g Genre) gin.H {
	return gin.H{"id": g.ID, "name": g.Name, "color": g.Color}
}

func (s *Server) articleJSON(c *gin.Context, a Article) (gin.H, error) {
	links, err := s.store.ListLinks(c.Request.Context(), a.ID, 0)
	if err != nil {
		return nil, err
	}
	genres := make([]gin.H, 0, len(links))
	for _, l := range links {
		g, err := s.store.GetGenre(c.Request.Context(), l.GenreID)
		if err != nil {
			continue
		}
		genres = append(genres, genreJSON(*g))
	}
	return gin.H{
		"id":         a.ID,
		"title":      a.Title,
		"content":    a.Content,
		"image_url":  a.ImageURL,
		"genres":     genres,
		"created_at": a.CreatedAt,
		"updated_at": a.UpdatedAt,
	}, nil
}

func (s *Server) linkJSON(c *gin.Context, l ArticleGenre) gin.H {
	if !s.opts.EmbedObjects {
		return gin.H{"id": l.ID, "article": l.ArticleID, "genre": l.GenreID}
	}
	row := gin.H{"id": l.ID, "article": gin.H{"id": l.ArticleID}, "genre": gin.H{"id": l.GenreID}}
	if a, err := s.store.GetArticle(c.Request.Context(), l.ArticleID); err == nil {
		row["article"] = gin.H{"id": a.ID, "title": a.Title}
	}
	if g, err := s.store.GetGenre(c.Request.Context(), l.GenreID); err == nil {
		row["genre"] = genreJSON(*g)
	}
	return row
}

// pagination

type page struct {
	start, end int
	number     int
	size       int
	total      int
}

// paginate reads ?page and ?page_size the way DRF's PageNumberPagination does.
func (s *Server) paginate(c *gin.Context, total int) (page, bool) {
	return s.paginateMax(c, total, maxPageSize)
}

func (s *Server) paginateMax(c *gin.Context, total, limit int) (page, bool) {
	p := page{number: 1, size: s.opts.PageSize, total: total}
	if v := c.Query("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.size = n
		}
	}
	if p.size > limit {
		p.size = limit
	}
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Invalid page."})
			return p, false
		}
		p.number = n
	}

	p.start = (p.number - 1) * p.size
	if p.start >= total && p.number > 1 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Invalid page."})
		return p, false
	}
	if p.start > total {
		p.start = total
	}
	p.end = p.start + p.size
	if p.end > total {
		p.end = total
	}
	return p, true
}

func pageURL(c *gin.Context, number int) interface{} {
	u := url.URL{Scheme: "http", Host: c.Request.Host, Path: c.Request.URL.Path}
	if c.Request.TLS != nil {
		u.Scheme = "https"
	}
	q := c.Request.URL.Query()
	q.Set("page", strconv.Itoa(number))
	u.RawQuery = q.Encode()
	return u.String()
}

func writePage(c *gin.Context, p page, results []gin.H) {
	var next, previous interface{}
	if p.end < p.total {
		next = pageURL(c, p.number+1)
	}
	if p.number > 1 {
		previous = pageURL(c, p.number-1)
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    p.total,
		"next":     next,
		"previous": previous,
		"results":  results,
	})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return 0, false
	}
	return id, true
}

func (s *Server) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	default:
		s.logger.Sugar().Errorw("store error", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error."})
	}
}

// parseGenreList accepts ids, numeric strings or {id} objects.
func parseGenreList(v interface{}) ([]int64, bool) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	ids := make([]int64, 0, len(list))
	for _, item := range list {
		id, ok := models.RefFromValue(item).Resolve()
		if !ok {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// auth

func (s *Server) csrf(c *gin.Context) {
	token, err := c.Cookie(csrfCookieName)
	if err != nil || token == "" {
		token = newCSRFToken()
		setCookie(c, csrfCookieName, token, 0, false)
	}
	c.JSON(http.StatusOK, gin.H{"csrfToken": token})
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "username and password required"})
		return
	}

	u, err := s.store.GetUser(c.Request.Context(), username)
	if err != nil || u == nil {
		// don't reveal which part failed
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid credentials."})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid credentials."})
		return
	}

	if old, err := c.Cookie(sessionCookieName); err == nil {
		s.endSession(old)
	}
	setCookie(c, sessionCookieName, s.newSession(u.ID), 0, true)
	// rotate the csrf token on login
	setCookie(c, csrfCookieName, newCSRFToken(), 0, false)

	c.JSON(http.StatusOK, gin.H{"user": toAPIUser(u)})
}

func (s *Server) logout(c *gin.Context) {
	if sid, err := c.Cookie(sessionCookieName); err == nil {
		s.endSession(sid)
	}
	setCookie(c, sessionCookieName, "", -1, true)
	c.JSON(http.StatusOK, gin.H{"detail": "Successfully logged out."})
}

func (s *Server) me(c *gin.Context) {
	u := currentUser(c)
	if u == nil {
		c.JSON(http.StatusForbidden, gin.H{"detail": "Authentication credentials were not provided."})
		return
	}
	c.JSON(http.StatusOK, toAPIUser(u))
}

// articles

func (s *Server) listArticles(c *gin.Context) {
	articles, err := s.store.ListArticles(c.Request.Context(), c.Query("search"))
	if err != nil {
		s.storeError(c, err)
		return
	}
	p, ok := s.paginate(c, len(articles))
	if !ok {
		return
	}
	results := make([]gin.H, 0, p.end-p.start)
	for _, a := range articles[p.start:p.end] {
		row, err := s.articleJSON(c, a)
		if err != nil {
			s.storeError(c, err)
			return
		}
		results = append(results, row)
	}
	writePage(c, p, results)
}

func (s *Server) getArticle(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := s.store.GetArticle(c.Request.Context(), id)
	if err != nil {
		s.storeError(c, err)
		return
	}
	s.renderArticle(c, http.StatusOK, *a)
}

func (s *Server) renderArticle(c *gin.Context, status int, a Article) {
	row, err := s.articleJSON(c, a)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(status, row)
}

func (s *Server) createArticle(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}
	title, _ := body["title"].(string)
	if strings.TrimSpace(title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"title": []string{"This field is required."}})
		return
	}
	a := Article{Title: strings.TrimSpace(title)}
	a.Content, _ = body["content"].(string)
	a.ImageURL, _ = body["image_url"].(string)

	var genres []int64
	if raw, present := body["genres"]; present {
		ids, ok := parseGenreList(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"genres": []string{"Expected a list of genre ids."}})
			return
		}
		genres = ids
	}

	if err := s.store.CreateArticle(c.Request.Context(), &a); err != nil {
		s.storeError(c, err)
		return
	}
	if len(genres) > 0 {
		if err := s.store.SetArticleGenres(c.Request.Context(), a.ID, genres); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"genres": []string{"Invalid genre id."}})
			return
		}
	}
	s.renderArticle(c, http.StatusCreated, a)
}

// updateArticle handles PATCH and PUT; a genres key replaces the article's links.
func (s *Server) updateArticle(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}

	a, err := s.store.GetArticle(c.Request.Context(), id)
	if err != nil {
		s.storeError(c, err)
		return
	}
	if v, ok := body["title"].(string); ok {
		if strings.TrimSpace(v) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"title": []string{"This field may not be blank."}})
			return
		}
		a.Title = strings.TrimSpace(v)
	}
	if v, ok := body["content"].(string); ok {
		a.Content = v
	}
	if v, ok := body["image_url"].(string); ok {
		a.ImageURL = v
	}

	if raw, present := body["genres"]; present {
		ids, ok := parseGenreList(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"genres": []string{"Expected a list of genre ids."}})
			return
		}
		if err := s.store.SetArticleGenres(c.Request.Context(), id, ids); err != nil {
			if errors.Is(err, ErrNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"genres": []string{"Invalid genre id."}})
				return
			}
			s.storeError(c, err)
			return
		}
	}

	if err := s.store.UpdateArticle(c.Request.Context(), a); err != nil {
		s.storeError(c, err)
		return
	}
	s.renderArticle(c, http.StatusOK, *a)
}

func (s *Server) deleteArticle(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.store.DeleteArticle(c.Request.Context(), id); err != nil {
		s.storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// genres

func (s *Server) listGenres(c *gin.Context) {
	genres, err := s.store.ListGenres(c.Request.Context())
	if err != nil {
		s.storeError(c, err)
		return
	}
	p, ok := s.paginate(c, len(genres))
	if !ok {
		return
	}
	results := make([]gin.H, 0, p.end-p.start)
	for _, g := range genres[p.start:p.end] {
		results = append(results, genreJSON(g))
	}
	writePage(c, p, results)
}

func (s *Server) getGenre(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	g, err := s.store.GetGenre(c.Request.Context(), id)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, genreJSON(*g))
}

type genreReq struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *Server) createGenre(c *gin.Context) {
	var req genreReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}
	g := Genre{Name: strings.TrimSpace(req.Name), Color: strings.TrimSpace(req.Color)}
	if g.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"name": []string{"This field is required."}})
		return
	}
	if err := s.store.CreateGenre(c.Request.Context(), &g); err != nil {
		if errors.Is(err, ErrConflict) {
			c.JSON(http.StatusBadRequest, gin.H{"name": []string{"genre with this name already exists."}})
			return
		}
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, genreJSON(g))
}

func (s *Server) deleteGenre(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.store.DeleteGenre(c.Request.Context(), id); err != nil {
		s.storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// article-genre links

func queryID(c *gin.Context, key string) (int64, bool) {
	v := c.Query(key)
	if v == "" {
		return 0, true
	}
	id, ok := models.ParseID(v)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{key: []string{"Select a valid choice."}})
		return 0, false
	}
	return id, true
}

func (s *Server) listLinks(c *gin.Context) {
	articleID, ok := queryID(c, "article")
	if !ok {
		return
	}
	genreID, ok := queryID(c, "genre")
	if !ok {
		return
	}
	if s.opts.IgnoreArticleFilter {
		articleID = 0
	}

	links, err := s.store.ListLinks(c.Request.Context(), articleID, genreID)
	if err != nil {
		s.storeError(c, err)
		return
	}
	limit := maxPageSize
	if s.opts.MaxLinkPageSize > 0 && s.opts.MaxLinkPageSize < limit {
		limit = s.opts.MaxLinkPageSize
	}
	p, ok := s.paginateMax(c, len(links), limit)
	if !ok {
		return
	}
	results := make([]gin.H, 0, p.end-p.start)
	for _, l := range links[p.start:p.end] {
		results = append(results, s.linkJSON(c, l))
	}
	writePage(c, p, results)
}

func (s *Server) createLink(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}
	articleID, okA := models.RefFromValue(body["article"]).Resolve()
	genreID, okG := models.RefFromValue(body["genre"]).Resolve()
	if !okA || !okG {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "article and genre are required"})
		return
	}

	l := ArticleGenre{ArticleID: articleID, GenreID: genreID}
	if err := s.store.CreateLink(c.Request.Context(), &l); err != nil {
		switch {
		case errors.Is(err, ErrConflict):
			c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{"The fields article, genre must make a unique set."}})
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid pk - object does not exist."})
		default:
			s.storeError(c, err)
		}
		return
	}
	c.JSON(http.StatusCreated, s.linkJSON(c, l))
}

func (s *Server) deleteLink(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.store.DeleteLink(c.Request.Context(), id); err != nil {
		s.storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
