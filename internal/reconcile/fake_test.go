package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

type call struct {
	Method   string
	Endpoint string
	Query    url.Values
	Body     interface{}
}

type fakeRow struct {
	ID      int64
	Article int64
	Genre   int64
}

// fakeBackend is an in-memory Transport emulating the association resource
// and the article detail/PATCH endpoints.
type fakeBackend struct {
	mu sync.Mutex

	endpoint string // association endpoint served, "" for none
	rows     []fakeRow
	nextID   int64

	ignoreFilter    bool // list ignores ?article=
	omitArticle     bool // rows come back without an article field
	idsOnlyFiltered bool // row ids only present when ?genre= is given
	embedObjects    bool // article/genre fields are embedded objects
	noIDs           bool // row ids are never disclosed
	pageCap         int  // rows per page regardless of ?page_size=, 0 for no cap
	dropNext        bool // capped pages carry no next link

	articleGenres map[int64][]int64
	detailFails   bool
	listFails     bool

	failPost   map[int64]bool // by genre
	failDelete map[int64]bool // by row id
	failPatch  bool
	nonJSON    map[string]bool // endpoints answering with HTML

	calls []call
}

type statusError int

func (e statusError) Error() string {
	return fmt.Sprintf("API request failed with status %d", int(e))
}

func newFakeBackend(endpoint string) *fakeBackend {
	return &fakeBackend{
		endpoint:      endpoint,
		nextID:        100,
		articleGenres: map[int64][]int64{},
		failPost:      map[int64]bool{},
		failDelete:    map[int64]bool{},
		nonJSON:       map[string]bool{},
	}
}

func (f *fakeBackend) link(article, genre int64) int64 {
	f.nextID++
	f.rows = append(f.rows, fakeRow{ID: f.nextID, Article: article, Genre: genre})
	return f.nextID
}

func (f *fakeBackend) record(c call) {
	f.calls = append(f.calls, c)
}

func (f *fakeBackend) mutations() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Method != http.MethodGet {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeBackend) genresOf(article int64) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int64
	for _, r := range f.rows {
		if r.Article == article {
			out = append(out, r.Genre)
		}
	}
	return out
}

func (f *fakeBackend) Get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Method: http.MethodGet, Endpoint: endpoint, Query: query})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.nonJSON[endpoint] {
		return []byte("<html>login</html>"), nil
	}

	if strings.HasPrefix(endpoint, "/articles/") {
		if f.detailFails {
			return nil, statusError(http.StatusInternalServerError)
		}
		id, _ := strconv.ParseInt(strings.Trim(strings.TrimPrefix(endpoint, "/articles/"), "/"), 10, 64)
		genres := make([]map[string]interface{}, 0)
		for _, g := range f.articleGenres[id] {
			genres = append(genres, map[string]interface{}{"id": g, "name": fmt.Sprintf("genre-%d", g)})
		}
		return json.Marshal(map[string]interface{}{"id": id, "title": "t", "genres": genres})
	}

	if f.endpoint == "" || endpoint != f.endpoint {
		return nil, statusError(http.StatusNotFound)
	}
	if f.listFails {
		return nil, statusError(http.StatusInternalServerError)
	}

	article, _ := strconv.ParseInt(query.Get("article"), 10, 64)
	genre, _ := strconv.ParseInt(query.Get("genre"), 10, 64)
	results := make([]map[string]interface{}, 0)
	for _, r := range f.rows {
		if !f.ignoreFilter && article > 0 && r.Article != article {
			continue
		}
		if genre > 0 && r.Genre != genre {
			continue
		}
		row := map[string]interface{}{}
		if !f.noIDs && (!f.idsOnlyFiltered || genre > 0) {
			row["id"] = r.ID
		}
		switch {
		case f.omitArticle:
		case f.embedObjects:
			row["article"] = map[string]interface{}{"id": r.Article, "title": "t"}
		default:
			row["article"] = r.Article
		}
		if f.embedObjects {
			row["genre"] = map[string]interface{}{"id": r.Genre, "name": "g"}
		} else {
			row["genre_id"] = r.Genre
		}
		results = append(results, row)
	}
	total := len(results)
	if f.pageCap <= 0 {
		return json.Marshal(map[string]interface{}{"count": total, "results": results})
	}

	page := 1
	if v := query.Get("page"); v != "" {
		page, _ = strconv.Atoi(v)
	}
	start := (page - 1) * f.pageCap
	if start > total {
		start = total
	}
	end := start + f.pageCap
	if end > total {
		end = total
	}
	var next interface{}
	if end < total && !f.dropNext {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page+1))
		next = "http://backend.test/api" + endpoint + "?" + q.Encode()
	}
	return json.Marshal(map[string]interface{}{"count": total, "next": next, "results": results[start:end]})
}

func (f *fakeBackend) Post(ctx context.Context, endpoint string, body interface{}) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Method: http.MethodPost, Endpoint: endpoint, Body: body})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if endpoint != f.endpoint {
		return nil, statusError(http.StatusNotFound)
	}
	payload := body.(map[string]int64)
	if f.failPost[payload["genre"]] {
		return nil, statusError(http.StatusBadRequest)
	}
	id := f.link(payload["article"], payload["genre"])
	return json.Marshal(map[string]int64{"id": id, "article": payload["article"], "genre": payload["genre"]})
}

func (f *fakeBackend) Patch(ctx context.Context, endpoint string, body interface{}) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Method: http.MethodPatch, Endpoint: endpoint, Body: body})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.failPatch {
		return nil, statusError(http.StatusBadRequest)
	}
	id, _ := strconv.ParseInt(strings.Trim(strings.TrimPrefix(endpoint, "/articles/"), "/"), 10, 64)
	f.articleGenres[id] = body.(map[string][]int64)["genres"]
	return []byte(`{}`), nil
}

func (f *fakeBackend) Delete(ctx context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(call{Method: http.MethodDelete, Endpoint: endpoint})

	if err := ctx.Err(); err != nil {
		return err
	}
	if f.endpoint == "" || !strings.HasPrefix(endpoint, f.endpoint) {
		return statusError(http.StatusNotFound)
	}
	id, err := strconv.ParseInt(strings.Trim(strings.TrimPrefix(endpoint, f.endpoint), "/"), 10, 64)
	if err != nil {
		return errors.New("bad row path " + endpoint)
	}
	if f.failDelete[id] {
		return statusError(http.StatusInternalServerError)
	}
	for i, r := range f.rows {
		if r.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return statusError(http.StatusNotFound)
}
