package errorlog

import (
	"errors"
	"time"
)

var (
	ErrEntryNotFound = errors.New("error log entry not found")
	ErrEmptyMessage  = errors.New("error log entry requires a message")
	ErrEmptyID       = errors.New("error log entry id cannot be empty")
)

// Entry is one logged error.
type Entry struct {
	ID          string    `json:"id"`
	Application string    `json:"application,omitempty"`
	Host        string    `json:"host,omitempty"`
	Type        string    `json:"type,omitempty"`
	Source      string    `json:"source,omitempty"`
	Message     string    `json:"message"`
	Detail      string    `json:"detail,omitempty"`
	User        string    `json:"user,omitempty"`
	StatusCode  int       `json:"status_code,omitempty"`
	Time        time.Time `json:"time"`
}

// Page is one page of List results.
type Page struct {
	Entries []*Entry `json:"entries"`
	Total   int      `json:"total"`
	Page    int      `json:"page"`
	Size    int      `json:"size"`
}

// indexMapping is applied when EnsureIndex creates the index.
var indexMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"id":          map[string]any{"type": "keyword"},
			"application": map[string]any{"type": "keyword"},
			"host":        map[string]any{"type": "keyword"},
			"type":        map[string]any{"type": "keyword"},
			"source":      map[string]any{"type": "keyword"},
			"message":     map[string]any{"type": "text"},
			"detail":      map[string]any{"type": "text", "index": false},
			"user":        map[string]any{"type": "keyword"},
			"status_code": map[string]any{"type": "integer"},
			"time":        map[string]any{"type": "date"},
		},
	},
}
