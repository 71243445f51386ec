package opensearch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	opensearch "github.com/opensearch-project/opensearch-go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestRecordingTransport(t *testing.T) {
	var forwarded string
	next := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.Body != nil {
			b, _ := io.ReadAll(r.Body)
			forwarded = string(b)
		}
		return &http.Response{StatusCode: http.StatusAccepted, Body: io.NopCloser(strings.NewReader("{}"))}, nil
	})
	transport := newRecordingTransport(next)

	t.Run("records body, url and status", func(t *testing.T) {
		ex := &Exchange{}
		req, err := http.NewRequestWithContext(WithExchange(context.Background(), ex),
			http.MethodPost, "http://es:9200/logs/_search", strings.NewReader(`{"q":1}`))
		require.NoError(t, err)

		resp, err := transport.RoundTrip(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, `{"q":1}`, forwarded)
		assert.Equal(t, []byte(`{"q":1}`), ex.RawRequest())
		assert.Equal(t, "http://es:9200/logs/_search", ex.RequestURL())
		assert.Equal(t, http.MethodPost, ex.Method)
		assert.Equal(t, http.StatusAccepted, ex.StatusCode())
		assert.True(t, ex.IsValid())
		assert.Equal(t, 1, ex.RoundTrips())
	})

	t.Run("bodyless request leaves body nil", func(t *testing.T) {
		ex := &Exchange{}
		req, err := http.NewRequestWithContext(WithExchange(context.Background(), ex),
			http.MethodGet, "http://es:9200/_cluster/health", nil)
		require.NoError(t, err)

		resp, err := transport.RoundTrip(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Nil(t, ex.RawRequest())
	})

	t.Run("requests without exchange pass through", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, "http://es:9200/", nil)
		require.NoError(t, err)

		resp, err := transport.RoundTrip(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	})

	t.Run("transport error leaves status unset", func(t *testing.T) {
		failing := newRecordingTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("dial tcp: connection refused")
		}))
		ex := &Exchange{}
		req, err := http.NewRequestWithContext(WithExchange(context.Background(), ex),
			http.MethodGet, "http://es:9200/", nil)
		require.NoError(t, err)

		_, err = failing.RoundTrip(req)
		require.Error(t, err)
		assert.False(t, ex.Responded())
	})
}

func TestExchangeServerError(t *testing.T) {
	structErr := &opensearch.StructError{
		Err:    opensearch.Err{Type: "version_conflict_engine_exception", Reason: "conflict"},
		Status: http.StatusConflict,
	}
	stringErr := &opensearch.StringError{Status: http.StatusServiceUnavailable, Err: "cluster unavailable"}
	messageErr := &opensearch.MessageError{}
	reasonErr := &opensearch.ReasonError{}
	plainErr := &opensearch.Error{}
	errorBodyErr := &opensearch.StringError{Status: http.StatusBadRequest, Err: `{"error":["bad"],"status":400}`}

	testcases := []struct {
		name string
		err  error
		want error
	}{
		{name: "no error", err: nil, want: nil},
		{name: "struct error", err: structErr, want: structErr},
		{name: "wrapped struct error", err: errors.Join(errors.New("index"), structErr), want: structErr},
		{name: "plain error", err: errors.New("status: 502"), want: nil},
		{name: "string error", err: stringErr, want: stringErr},
		{name: "message error", err: messageErr, want: messageErr},
		{name: "reason error", err: reasonErr, want: reasonErr},
		{name: "error field only", err: plainErr, want: plainErr},
		{
			name: "regular response body is not an error document",
			err:  &opensearch.StringError{Status: http.StatusNotFound, Err: `{"_index":"logs","_id":"x","found":false}`},
			want: nil,
		},
		{name: "body with error member is kept", err: errorBodyErr, want: errorBodyErr},
	}

	for _, tt := range testcases {
		t.Run(tt.name, func(t *testing.T) {
			ex := &Exchange{Status: http.StatusConflict, Err: tt.err}
			got := ex.ServerError()
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Same(t, tt.want, got)
		})
	}
}

func TestExchangeIsValid(t *testing.T) {
	assert.True(t, (&Exchange{Status: 200}).IsValid())
	assert.True(t, (&Exchange{Status: 201}).IsValid())
	assert.False(t, (&Exchange{Status: 200, Err: errors.New("decode")}).IsValid())
	assert.False(t, (&Exchange{Status: 404}).IsValid())
	assert.False(t, (&Exchange{}).IsValid())
}
