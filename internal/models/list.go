package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrNoList is returned when a JSON object carries no recognizable list field.
var ErrNoList = errors.New("response does not contain a list")

// listKeys are the envelope fields that may hold the rows of a list response.
var listKeys = []string{"results", "data", "items"}

// ListResponse is the paginated envelope used by the REST backend.
type ListResponse struct {
	Count    int         `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  interface{} `json:"results"`
}

// Page describes one decoded page of a list response.
type Page struct {
	// Total is the envelope's count when present, otherwise the decoded length.
	Total int
	// Next is the link to the following page, empty on the last one.
	Next string
}

// DecodeList decodes a list response into out, which must be a pointer to a
// slice. Both bare arrays and paginated envelopes are accepted. The returned
// total is the envelope's count when present, otherwise the decoded length.
func DecodeList(data []byte, out interface{}) (int, error) {
	page, err := DecodePage(data, out)
	return page.Total, err
}

// DecodePage is DecodeList that also reports the envelope's next link.
func DecodePage(data []byte, out interface{}) (Page, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Page{}, errors.New("empty response body")
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, out); err != nil {
			return Page{}, fmt.Errorf("failed to decode list: %w", err)
		}
		return Page{Total: sliceLen(out)}, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return Page{}, fmt.Errorf("failed to decode list envelope: %w", err)
	}

	for _, key := range listKeys {
		raw, ok := envelope[key]
		if !ok || string(bytes.TrimSpace(raw)) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return Page{}, fmt.Errorf("failed to decode %q: %w", key, err)
		}
		page := Page{Total: sliceLen(out)}
		if rawCount, ok := envelope["count"]; ok {
			var count int
			if err := json.Unmarshal(rawCount, &count); err == nil && count >= page.Total {
				page.Total = count
			}
		}
		if rawNext, ok := envelope["next"]; ok {
			var next *string
			if err := json.Unmarshal(rawNext, &next); err == nil && next != nil {
				page.Next = *next
			}
		}
		return page, nil
	}

	return Page{}, ErrNoList
}

func sliceLen(out interface{}) int {
	v := reflect.ValueOf(out)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice {
		return 0
	}
	return v.Len()
}
