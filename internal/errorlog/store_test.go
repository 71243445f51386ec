package errorlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	opensearchgo "github.com/opensearch-project/opensearch-go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/searchguard/internal/guard"
	"github.com/ca-srg/searchguard/internal/opensearch"
)

type fakeBackend struct {
	mu         sync.Mutex
	exists     bool
	created    any
	createErr  error
	docs       map[string]json.RawMessage
	getErr     error
	lastSearch any
	hits       []opensearch.SearchHit
	refreshed  []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{docs: make(map[string]json.RawMessage)}
}

func (f *fakeBackend) IndexExists(context.Context, string) (bool, error) {
	return f.exists, nil
}

func (f *fakeBackend) CreateIndex(_ context.Context, _ string, body any) error {
	f.created = body
	return f.createErr
}

func (f *fakeBackend) IndexDocument(_ context.Context, _ string, id string, doc any) (string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[id] = raw
	return id, nil
}

func (f *fakeBackend) GetDocument(_ context.Context, index, id string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	raw, ok := f.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", opensearch.ErrDocumentNotFound, index, id)
	}
	return raw, nil
}

func (f *fakeBackend) Search(_ context.Context, _ string, body any) (*opensearch.SearchResult, error) {
	f.lastSearch = body
	return &opensearch.SearchResult{TotalHits: 42, Hits: f.hits}, nil
}

func (f *fakeBackend) RefreshIndex(_ context.Context, index string) error {
	f.refreshed = append(f.refreshed, index)
	return nil
}

func TestNewStore(t *testing.T) {
	_, err := NewStore(nil, Options{})
	var nullErr *guard.NullArgumentError
	require.ErrorAs(t, err, &nullErr)
	assert.Equal(t, "backend", nullErr.Name)

	var typedNil *opensearch.Client
	_, err = NewStore(typedNil, Options{})
	require.ErrorAs(t, err, &nullErr)

	store, err := NewStore(newFakeBackend(), Options{Index: "   "})
	require.NoError(t, err)
	assert.Equal(t, "errorlog", store.Index())

	store, err = NewStore(newFakeBackend(), Options{Index: " app-errors "})
	require.NoError(t, err)
	assert.Equal(t, "app-errors", store.Index())
}

func TestLog(t *testing.T) {
	backend := newFakeBackend()
	store, err := NewStore(backend, Options{Application: " billing "})
	require.NoError(t, err)
	fixed := time.Date(2026, 10, 16, 9, 30, 0, 0, time.FixedZone("JST", 9*60*60))
	store.now = func() time.Time { return fixed }
	store.host = "web-1"
	ctx := context.Background()

	t.Run("normalises and stores entry", func(t *testing.T) {
		in := &Entry{Message: "  nil pointer dereference  ", Type: " panic ", User: "   ", StatusCode: 500}
		id, err := store.Log(ctx, in)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		var stored Entry
		require.NoError(t, json.Unmarshal(backend.docs[id], &stored))
		assert.Equal(t, id, stored.ID)
		assert.Equal(t, "nil pointer dereference", stored.Message)
		assert.Equal(t, "panic", stored.Type)
		assert.Empty(t, stored.User)
		assert.Equal(t, "billing", stored.Application)
		assert.Equal(t, "web-1", stored.Host)
		assert.Equal(t, 500, stored.StatusCode)
		assert.True(t, fixed.Equal(stored.Time))
		assert.Equal(t, time.UTC, stored.Time.Location())

		assert.Empty(t, in.ID, "caller entry must not be modified")
	})

	t.Run("keeps explicit application and time", func(t *testing.T) {
		when := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		id, err := store.Log(ctx, &Entry{Message: "boom", Application: "search", Time: when})
		require.NoError(t, err)

		var stored Entry
		require.NoError(t, json.Unmarshal(backend.docs[id], &stored))
		assert.Equal(t, "search", stored.Application)
		assert.True(t, when.Equal(stored.Time))
	})

	t.Run("rejects nil and blank entries", func(t *testing.T) {
		_, err := store.Log(ctx, nil)
		var nullErr *guard.NullArgumentError
		require.ErrorAs(t, err, &nullErr)
		assert.Equal(t, "entry", nullErr.Name)

		_, err = store.Log(ctx, &Entry{Message: " \t "})
		require.ErrorIs(t, err, ErrEmptyMessage)
	})
}

func TestGet(t *testing.T) {
	backend := newFakeBackend()
	backend.docs["abc"] = json.RawMessage(`{"message":"boom","application":"billing"}`)
	store, err := NewStore(backend, Options{})
	require.NoError(t, err)
	ctx := context.Background()

	entry, err := store.Get(ctx, " abc ")
	require.NoError(t, err)
	assert.Equal(t, "abc", entry.ID, "id falls back to the document id")
	assert.Equal(t, "boom", entry.Message)

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrEntryNotFound)

	_, err = store.Get(ctx, "  ")
	require.ErrorIs(t, err, ErrEmptyID)

	backend.getErr = &guard.InvalidResponseError{StatusCode: 502, Request: "http://es/errorlog/_doc/abc"}
	_, err = store.Get(ctx, "abc")
	var invalid *guard.InvalidResponseError
	require.ErrorAs(t, err, &invalid)
	assert.NotErrorIs(t, err, ErrEntryNotFound)
}

func TestGetMany(t *testing.T) {
	backend := newFakeBackend()
	for i := range 10 {
		id := fmt.Sprintf("e%d", i)
		backend.docs[id] = json.RawMessage(fmt.Sprintf(`{"id":%q,"message":"m%d"}`, id, i))
	}
	store, err := NewStore(backend, Options{Concurrency: 3})
	require.NoError(t, err)
	ctx := context.Background()

	entries, err := store.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = store.GetMany(ctx, []string{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = store.GetMany(ctx, []string{"e7", "nope", "e1", "e4"})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "e7", entries[0].ID)
	assert.Equal(t, "e1", entries[1].ID)
	assert.Equal(t, "e4", entries[2].ID)

	backend.getErr = errors.New("boom")
	_, err = store.GetMany(ctx, []string{"e1"})
	require.Error(t, err)
}

func TestGetSeq(t *testing.T) {
	backend := newFakeBackend()
	backend.docs["e1"] = json.RawMessage(`{"id":"e1","message":"m1"}`)
	backend.docs["e2"] = json.RawMessage(`{"id":"e2","message":"m2"}`)
	store, err := NewStore(backend, Options{})
	require.NoError(t, err)
	ctx := context.Background()

	entries, err := store.GetSeq(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = store.GetSeq(ctx, slices.Values([]string{}))
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = store.GetSeq(ctx, slices.Values([]string{"e2", "missing", "e1"}))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e2", entries[0].ID)
	assert.Equal(t, "e1", entries[1].ID)
}

func TestList(t *testing.T) {
	backend := newFakeBackend()
	backend.hits = []opensearch.SearchHit{
		{ID: "b", Source: json.RawMessage(`{"id":"b","message":"second"}`)},
		{ID: "a", Source: json.RawMessage(`{"message":"first"}`)},
	}
	ctx := context.Background()

	t.Run("all applications", func(t *testing.T) {
		store, err := NewStore(backend, Options{})
		require.NoError(t, err)

		page, err := store.List(ctx, 2, 500)
		require.NoError(t, err)

		assert.Equal(t, 42, page.Total)
		assert.Equal(t, 100, page.Size)
		require.Len(t, page.Entries, 2)
		assert.Equal(t, "b", page.Entries[0].ID)
		assert.Equal(t, "a", page.Entries[1].ID)

		body := backend.lastSearch.(map[string]any)
		assert.Equal(t, 200, body["from"])
		assert.Equal(t, 100, body["size"])
		assert.Contains(t, body["query"], "match_all")
	})

	t.Run("filters by application", func(t *testing.T) {
		store, err := NewStore(backend, Options{Application: "billing"})
		require.NoError(t, err)

		_, err = store.List(ctx, 0, 10)
		require.NoError(t, err)

		raw, err := json.Marshal(backend.lastSearch)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"term":{"application":"billing"}`)
	})

	t.Run("rejects bad paging", func(t *testing.T) {
		store, err := NewStore(backend, Options{})
		require.NoError(t, err)

		_, err = store.List(ctx, -1, 10)
		require.Error(t, err)
		_, err = store.List(ctx, 0, 0)
		require.Error(t, err)
	})

	t.Run("rejects pages past the result window", func(t *testing.T) {
		store, err := NewStore(backend, Options{})
		require.NoError(t, err)
		backend.lastSearch = nil

		_, err = store.List(ctx, 99, 100)
		require.NoError(t, err, "from 9900 + size 100 fits")

		backend.lastSearch = nil
		_, err = store.List(ctx, 100, 100)
		require.ErrorContains(t, err, "beyond the first 10000")
		_, err = store.List(ctx, math.MaxInt/2, 500)
		require.Error(t, err)
		assert.Nil(t, backend.lastSearch, "no request is sent for a rejected page")
	})
}

func TestEnsureIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("existing index untouched", func(t *testing.T) {
		backend := newFakeBackend()
		backend.exists = true
		store, err := NewStore(backend, Options{})
		require.NoError(t, err)

		require.NoError(t, store.EnsureIndex(ctx))
		assert.Nil(t, backend.created)
	})

	t.Run("creates with mapping", func(t *testing.T) {
		backend := newFakeBackend()
		store, err := NewStore(backend, Options{})
		require.NoError(t, err)

		require.NoError(t, store.EnsureIndex(ctx))
		assert.Equal(t, indexMapping, backend.created)
	})

	t.Run("concurrent creation is tolerated", func(t *testing.T) {
		backend := newFakeBackend()
		backend.createErr = &guard.ServerReportedError{Payload: &opensearchgo.StructError{
			Err:    opensearchgo.Err{Type: "resource_already_exists_exception", Reason: "index [errorlog] already exists"},
			Status: 400,
		}}
		store, err := NewStore(backend, Options{})
		require.NoError(t, err)

		require.NoError(t, store.EnsureIndex(ctx))
	})

	t.Run("other failures surface", func(t *testing.T) {
		backend := newFakeBackend()
		backend.createErr = &guard.InvalidResponseError{StatusCode: 403, Request: "{}"}
		store, err := NewStore(backend, Options{})
		require.NoError(t, err)

		require.Error(t, store.EnsureIndex(ctx))
	})
}

func TestFlush(t *testing.T) {
	backend := newFakeBackend()
	store, err := NewStore(backend, Options{Index: "errs"})
	require.NoError(t, err)

	require.NoError(t, store.Flush(context.Background()))
	assert.Equal(t, []string{"errs"}, backend.refreshed)
}

func newClusterStore(t *testing.T, docs map[string]string) *Store {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /errorlog/_doc/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		w.Header().Set("Content-Type", "application/json")
		source, ok := docs[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"_index":"errorlog","_id":"`+id+`","found":false}`)
			return
		}
		_, _ = io.WriteString(w, `{"_index":"errorlog","_id":"`+id+`","_version":1,"_seq_no":0,"_primary_term":1,"found":true,"_source":`+source+`}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := opensearch.NewClient(&opensearch.Config{
		Endpoint:   server.URL,
		AuthMode:   "none",
		RetryDelay: time.Millisecond,
		RateLimit:  1000,
		RateBurst:  1000,
	})
	require.NoError(t, err)

	store, err := NewStore(client, Options{Concurrency: 2})
	require.NoError(t, err)
	return store
}

func TestGetAgainstCluster(t *testing.T) {
	store := newClusterStore(t, map[string]string{
		"a": `{"id":"a","message":"first"}`,
		"c": `{"id":"c","message":"third"}`,
	})
	ctx := context.Background()

	entry, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "first", entry.Message)

	_, err = store.Get(ctx, "b")
	require.ErrorIs(t, err, ErrEntryNotFound)
	var serverErr *guard.ServerReportedError
	assert.False(t, errors.As(err, &serverErr))

	entries, err := store.GetMany(ctx, []string{"c", "b", "a"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].ID)
	assert.Equal(t, "a", entries[1].ID)
}
