package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/melissa98m/weeb-website-sub000/internal/models"
)

var (
	rowIDKeys   = []string{"id", "pk"}
	articleKeys = []string{"article", "article_id", "articleId"}
	genreKeys   = []string{"genre", "genre_id", "genreId"}
)

// Observation is the association state read for one article.
type Observation struct {
	// Endpoint is empty when the state came from the article detail.
	Endpoint string
	// RawCount is the number of rows the backend returned before filtering.
	RawCount int
	Rows     []models.Association
	// Current holds the rows attributed to the queried article.
	Current []models.Association
}

// DeletionsAllowed holds when at least one row was attributed to the article,
// or when the backend returned no rows at all.
func (o *Observation) DeletionsAllowed() bool {
	return len(o.Current) > 0 || o.RawCount == 0
}

// GenreIDs returns the genre ids of Current in row order, without repeats.
func (o *Observation) GenreIDs() []int64 {
	seen := make(map[int64]bool, len(o.Current))
	ids := make([]int64, 0, len(o.Current))
	for _, row := range o.Current {
		if !seen[row.Genre] {
			seen[row.Genre] = true
			ids = append(ids, row.Genre)
		}
	}
	return ids
}

// decodeRows extracts the raw rows of a list response. A JSON object with no
// list field is treated as an empty list.
func decodeRows(body []byte) ([]interface{}, error) {
	rows, _, err := decodePage(body)
	return rows, err
}

func decodePage(body []byte) ([]interface{}, models.Page, error) {
	var rows []interface{}
	page, err := models.DecodePage(body, &rows)
	if err != nil {
		if errors.Is(err, models.ErrNoList) {
			return nil, models.Page{}, nil
		}
		return nil, models.Page{}, fmt.Errorf("failed to decode association rows: %w", err)
	}
	return rows, page, nil
}

// Normalize converts heterogeneous association rows into canonical triples.
// Rows that are not objects or carry no resolvable genre are dropped; a row
// without a resolvable article keeps Article == 0.
func Normalize(rows []interface{}) []models.Association {
	out := make([]models.Association, 0, len(rows))
	for _, raw := range rows {
		row, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if assoc, ok := normalizeRow(row); ok {
			out = append(out, assoc)
		}
	}
	return out
}

func normalizeRow(row map[string]interface{}) (models.Association, bool) {
	genre, ok := firstRef(row, genreKeys).Resolve()
	if !ok {
		return models.Association{}, false
	}
	assoc := models.Association{Genre: genre}
	if article, ok := firstRef(row, articleKeys).Resolve(); ok {
		assoc.Article = article
	}
	if id, ok := firstRef(row, rowIDKeys).Resolve(); ok {
		assoc.ID = &id
	}
	return assoc, true
}

// firstRef returns the first non-null field among keys as a Ref.
func firstRef(row map[string]interface{}, keys []string) models.Ref {
	for _, key := range keys {
		if v, ok := row[key]; ok && v != nil {
			return models.RefFromValue(v)
		}
	}
	return models.Ref{}
}

// Attributed keeps the rows belonging to articleID.
func Attributed(rows []models.Association, articleID int64) []models.Association {
	out := make([]models.Association, 0, len(rows))
	for _, row := range rows {
		if row.Article == articleID {
			out = append(out, row)
		}
	}
	return out
}

// embeddedRows builds rows from an article detail body. They have no row id
// and are attributed to the article by construction.
func embeddedRows(body []byte, articleID int64) ([]models.Association, error) {
	var detail struct {
		Genres []models.Ref `json:"genres"`
	}
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("failed to unmarshal article: %w", err)
	}

	rows := make([]models.Association, 0, len(detail.Genres))
	for _, ref := range detail.Genres {
		if genre, ok := ref.Resolve(); ok {
			rows = append(rows, models.Association{Article: articleID, Genre: genre})
		}
	}
	return rows, nil
}
