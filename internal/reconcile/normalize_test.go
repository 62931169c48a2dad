package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/melissa98m/weeb-website-sub000/internal/models"
)

func int64Ptr(v int64) *int64 {
	return &v
}

func decodeJSONRows(t *testing.T, body string) []interface{} {
	t.Helper()
	raw, err := decodeRows([]byte(body))
	if err != nil {
		t.Fatalf("decodeRows() error = %v", err)
	}
	return raw
}

func TestNormalizeRowShapes(t *testing.T) {
	body := `[
		{"id": 1, "article": 55, "genre": 2},
		{"id": "2", "article": {"id": 55, "title": "x"}, "genre": {"id": 3, "name": "Mecha"}},
		{"pk": 3, "article_id": 55, "genre_id": 4},
		{"articleId": "56", "genreId": 5},
		{"id": 5, "genre": 6},
		{"id": 6, "article": 55},
		{"id": 7, "article": 55, "genre": null, "genre_id": 8},
		"not an object"
	]`

	got := Normalize(decodeJSONRows(t, body))
	want := []models.Association{
		{ID: int64Ptr(1), Article: 55, Genre: 2},
		{ID: int64Ptr(2), Article: 55, Genre: 3},
		{ID: int64Ptr(3), Article: 55, Genre: 4},
		{Article: 56, Genre: 5},
		{ID: int64Ptr(5), Article: 0, Genre: 6},
		{ID: int64Ptr(7), Article: 55, Genre: 8},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRowsEnvelopes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{name: "array", body: `[{"genre": 1}]`, want: 1},
		{name: "results", body: `{"count": 2, "results": [{"genre": 1}, {"genre": 2}]}`, want: 2},
		{name: "object without list", body: `{"detail": "nothing here"}`, want: 0},
		{name: "html", body: `<html></html>`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := decodeRows([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Error("decodeRows() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeRows() error = %v", err)
			}
			if len(raw) != tt.want {
				t.Errorf("len = %d, want %d", len(raw), tt.want)
			}
		})
	}
}

func TestAttributedExcludesOtherArticles(t *testing.T) {
	all := Normalize(decodeJSONRows(t, `[{"article": 55, "genre": 1}, {"article": 56, "genre": 2}]`))
	obs := &Observation{RawCount: 2, Rows: all, Current: Attributed(all, 55)}

	if diff := cmp.Diff([]int64{1}, obs.GenreIDs()); diff != "" {
		t.Errorf("current genres mismatch (-want +got):\n%s", diff)
	}
	if !obs.DeletionsAllowed() {
		t.Error("DeletionsAllowed() = false with an attributed row")
	}
}

func TestDeletionsAllowed(t *testing.T) {
	tests := []struct {
		name string
		obs  Observation
		want bool
	}{
		{name: "no rows at all", obs: Observation{}, want: true},
		{name: "attributed rows", obs: Observation{RawCount: 3, Current: rows(1, 1)}, want: true},
		{name: "rows but none attributed", obs: Observation{RawCount: 3}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.obs.DeletionsAllowed(); got != tt.want {
				t.Errorf("DeletionsAllowed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmbeddedRows(t *testing.T) {
	body, _ := json.Marshal(map[string]interface{}{
		"id":     9,
		"genres": []interface{}{map[string]interface{}{"id": 4, "name": "Yuri"}, 5, "6", nil},
	})
	got, err := embeddedRows(body, 9)
	if err != nil {
		t.Fatalf("embeddedRows() error = %v", err)
	}
	want := []models.Association{{Article: 9, Genre: 4}, {Article: 9, Genre: 5}, {Article: 9, Genre: 6}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("embeddedRows mismatch (-want +got):\n%s", diff)
	}
}
