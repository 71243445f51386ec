// Package errorlog keeps application error records in an OpenSearch index.
package errorlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	opensearchgo "github.com/opensearch-project/opensearch-go/v4"
	"golang.org/x/sync/errgroup"

	"github.com/ca-srg/searchguard/internal/guard"
	"github.com/ca-srg/searchguard/internal/opensearch"
)

const (
	defaultIndex       = "errorlog"
	defaultConcurrency = 4
	maxPageSize        = 100
	// maxResultWindow is the OpenSearch default index.max_result_window;
	// from+size beyond it is rejected by the server.
	maxResultWindow = 10000
)

// Backend is the subset of the OpenSearch client the store needs.
type Backend interface {
	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, body any) error
	IndexDocument(ctx context.Context, index, id string, doc any) (string, error)
	GetDocument(ctx context.Context, index, id string) (json.RawMessage, error)
	Search(ctx context.Context, index string, body any) (*opensearch.SearchResult, error)
	RefreshIndex(ctx context.Context, index string) error
}

var _ Backend = (*opensearch.Client)(nil)

type Options struct {
	Index       string
	Application string
	Concurrency int
}

type Store struct {
	backend     Backend
	index       string
	application string
	host        string
	concurrency int
	now         func() time.Time
}

func NewStore(backend Backend, opts Options) (*Store, error) {
	if _, err := guard.RequireNonNull(backend, "backend"); err != nil {
		return nil, err
	}

	s := &Store{
		backend:     backend,
		index:       defaultIndex,
		application: trimmed(opts.Application),
		concurrency: opts.Concurrency,
		now:         time.Now,
	}
	if index := guard.TrimToNullable(&opts.Index); index != nil {
		s.index = *index
	}
	if s.concurrency <= 0 {
		s.concurrency = defaultConcurrency
	}
	if host, err := os.Hostname(); err == nil {
		s.host = host
	}

	return s, nil
}

func (s *Store) Index() string {
	return s.index
}

// EnsureIndex creates the index with the entry mapping unless it exists.
func (s *Store) EnsureIndex(ctx context.Context) error {
	exists, err := s.backend.IndexExists(ctx, s.index)
	if err != nil {
		return fmt.Errorf("check index %s: %w", s.index, err)
	}
	if exists {
		return nil
	}

	if err := s.backend.CreateIndex(ctx, s.index, indexMapping); err != nil {
		var osErr *opensearchgo.StructError
		if errors.As(err, &osErr) && osErr.Err.Type == "resource_already_exists_exception" {
			return nil
		}
		return fmt.Errorf("create index %s: %w", s.index, err)
	}

	log.Printf("errorlog: created index %s", s.index)
	return nil
}

// Log stores entry and returns its new id. entry is not modified.
func (s *Store) Log(ctx context.Context, entry *Entry) (string, error) {
	if _, err := guard.RequireNonNull(entry, "entry"); err != nil {
		return "", err
	}

	message := guard.TrimToNullable(&entry.Message)
	if message == nil {
		return "", ErrEmptyMessage
	}

	doc := Entry{
		ID:          uuid.NewString(),
		Application: trimmed(entry.Application),
		Host:        trimmed(entry.Host),
		Type:        trimmed(entry.Type),
		Source:      trimmed(entry.Source),
		Message:     *message,
		Detail:      entry.Detail,
		User:        trimmed(entry.User),
		StatusCode:  entry.StatusCode,
		Time:        entry.Time.UTC(),
	}
	if doc.Application == "" {
		doc.Application = s.application
	}
	if doc.Host == "" {
		doc.Host = s.host
	}
	if entry.Time.IsZero() {
		doc.Time = s.now().UTC()
	}

	if _, err := s.backend.IndexDocument(ctx, s.index, doc.ID, &doc); err != nil {
		return "", fmt.Errorf("log error entry: %w", err)
	}
	return doc.ID, nil
}

// Get returns the entry with id, or ErrEntryNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	entryID := guard.TrimToNullable(&id)
	if entryID == nil {
		return nil, ErrEmptyID
	}

	source, err := s.backend.GetDocument(ctx, s.index, *entryID)
	if err != nil {
		if errors.Is(err, opensearch.ErrDocumentNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, *entryID)
		}
		return nil, fmt.Errorf("get error entry %s: %w", *entryID, err)
	}

	return decodeEntry(source, *entryID)
}

// GetMany fetches ids concurrently. Missing entries are skipped; the result
// keeps the order of ids.
func (s *Store) GetMany(ctx context.Context, ids []string) ([]*Entry, error) {
	if guard.IsEmptyOrAbsent(ids) {
		return []*Entry{}, nil
	}

	found := make([]*Entry, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, id := range ids {
		g.Go(func() error {
			entry, err := s.Get(gctx, id)
			if errors.Is(err, ErrEntryNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			found[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(ids))
	for _, entry := range found {
		if entry != nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// GetSeq is GetMany over a sequence of ids. ids may be iterated twice.
func (s *Store) GetSeq(ctx context.Context, ids iter.Seq[string]) ([]*Entry, error) {
	if guard.IsSeqEmptyOrAbsent(ids) {
		return []*Entry{}, nil
	}
	return s.GetMany(ctx, slices.Collect(ids))
}

// List returns one page of entries, newest first. page is zero-based and
// size is capped at 100. Pages past the first 10000 entries are rejected.
func (s *Store) List(ctx context.Context, page, size int) (*Page, error) {
	if page < 0 {
		return nil, fmt.Errorf("page cannot be negative: %d", page)
	}
	if size <= 0 {
		return nil, fmt.Errorf("page size must be positive: %d", size)
	}
	size = min(size, maxPageSize)
	if page > (maxResultWindow-size)/size {
		return nil, fmt.Errorf("page %d is beyond the first %d entries", page, maxResultWindow)
	}

	result, err := s.backend.Search(ctx, s.index, s.listQuery(page, size))
	if err != nil {
		return nil, fmt.Errorf("list error entries: %w", err)
	}

	out := &Page{
		Entries: make([]*Entry, 0, len(result.Hits)),
		Total:   result.TotalHits,
		Page:    page,
		Size:    size,
	}
	for _, hit := range result.Hits {
		entry, err := decodeEntry(hit.Source, hit.ID)
		if err != nil {
			return nil, err
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}

func (s *Store) listQuery(page, size int) map[string]any {
	query := map[string]any{"match_all": map[string]any{}}
	if s.application != "" {
		query = map[string]any{
			"bool": map[string]any{
				"filter": []map[string]any{
					{"term": map[string]any{"application": s.application}},
				},
			},
		}
	}

	return map[string]any{
		"from":             page * size,
		"size":             size,
		"track_total_hits": true,
		"query":            query,
		"sort": []map[string]any{
			{"time": map[string]string{"order": "desc"}},
		},
	}
}

// Flush makes logged entries visible to List.
func (s *Store) Flush(ctx context.Context) error {
	return s.backend.RefreshIndex(ctx, s.index)
}

func decodeEntry(source json.RawMessage, id string) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(source, &entry); err != nil {
		return nil, fmt.Errorf("decode error entry %s: %w", id, err)
	}
	if entry.ID == "" {
		entry.ID = id
	}
	return &entry, nil
}

func trimmed(s string) string {
	if t := guard.TrimToNullable(&s); t != nil {
		return *t
	}
	return ""
}
