package models

import (
	"errors"
	"testing"
)

func TestDecodeList(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantLen   int
		wantTotal int
		wantErr   error
	}{
		{name: "bare array", body: `[{"id":1,"name":"a"},{"id":2,"name":"b"}]`, wantLen: 2, wantTotal: 2},
		{name: "paginated envelope", body: `{"count": 12, "next": "x", "previous": null, "results": [{"id":1}]}`, wantLen: 1, wantTotal: 12},
		{name: "data envelope", body: `{"data": [{"id":1},{"id":2},{"id":3}]}`, wantLen: 3, wantTotal: 3},
		{name: "empty results", body: `{"count": 0, "results": []}`, wantLen: 0, wantTotal: 0},
		{name: "object without list", body: `{"detail": "ok"}`, wantErr: ErrNoList},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var genres []Genre
			total, err := DecodeList([]byte(tt.body), &genres)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeList() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeList() error = %v", err)
			}
			if len(genres) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(genres), tt.wantLen)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
		})
	}
}

func TestDecodeListRejectsInvalidJSON(t *testing.T) {
	var genres []Genre
	if _, err := DecodeList([]byte("<html>not json</html>"), &genres); err == nil {
		t.Error("DecodeList() expected error for HTML body")
	}
	if _, err := DecodeList([]byte("  "), &genres); err == nil {
		t.Error("DecodeList() expected error for empty body")
	}
}

func TestDecodePageNext(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantNext string
	}{
		{name: "absolute link", body: `{"count": 4, "next": "http://h/api/x/?page=2", "results": [{"id":1}]}`, wantNext: "http://h/api/x/?page=2"},
		{name: "last page", body: `{"count": 4, "next": null, "results": [{"id":4}]}`},
		{name: "no next field", body: `{"results": [{"id":1}]}`},
		{name: "bare array", body: `[{"id":1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var genres []Genre
			page, err := DecodePage([]byte(tt.body), &genres)
			if err != nil {
				t.Fatalf("DecodePage() error = %v", err)
			}
			if page.Next != tt.wantNext {
				t.Errorf("Next = %q, want %q", page.Next, tt.wantNext)
			}
		})
	}
}
