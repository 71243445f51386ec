package guard

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResponse struct {
	valid      bool
	serverErr  error
	status     int
	rawRequest []byte
	url        string
}

func (f *fakeResponse) IsValid() bool      { return f.valid }
func (f *fakeResponse) ServerError() error { return f.serverErr }
func (f *fakeResponse) StatusCode() int    { return f.status }
func (f *fakeResponse) RawRequest() []byte { return f.rawRequest }
func (f *fakeResponse) RequestURL() string { return f.url }

type indexMissing struct {
	Type   string
	Reason string
}

func (e *indexMissing) Error() string { return e.Type + ": " + e.Reason }

func TestVerifySuccessfulPassesValidResponseThrough(t *testing.T) {
	testcases := []*fakeResponse{
		{valid: true, status: http.StatusOK},
		{valid: true, status: http.StatusCreated, rawRequest: []byte(`{"a":1}`)},
		// validity wins even when an error payload is attached
		{valid: true, status: http.StatusOK, serverErr: errors.New("ignored")},
	}

	for i, resp := range testcases {
		t.Run(fmt.Sprintf("case-%d", i), func(t *testing.T) {
			got, err := VerifySuccessful(resp)
			require.NoError(t, err)
			assert.Same(t, resp, got)
		})
	}
}

func TestVerifySuccessfulReturnsServerReportedError(t *testing.T) {
	payload := &indexMissing{Type: "index_not_found_exception", Reason: "no such index [logs]"}
	resp := &fakeResponse{
		status:     http.StatusNotFound,
		serverErr:  payload,
		rawRequest: []byte(`{"query":{"match_all":{}}}`),
		url:        "http://es/logs/_search",
	}

	_, err := VerifySuccessful(resp)
	require.Error(t, err)

	var serverErr *ServerReportedError
	require.ErrorAs(t, err, &serverErr)
	assert.Same(t, payload, serverErr.Payload)

	var unwrapped *indexMissing
	require.ErrorAs(t, err, &unwrapped, "payload should be reachable through Unwrap")
	assert.Equal(t, "no such index [logs]", unwrapped.Reason)

	var invalid *InvalidResponseError
	assert.False(t, errors.As(err, &invalid))
}

func TestVerifySuccessfulReturnsInvalidResponseError(t *testing.T) {
	t.Run("with request body", func(t *testing.T) {
		resp := &fakeResponse{
			status:     http.StatusBadGateway,
			rawRequest: []byte(`{"q":1}`),
			url:        "http://es/_search",
		}

		_, err := VerifySuccessful(resp)

		var invalid *InvalidResponseError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, http.StatusBadGateway, invalid.StatusCode)
		assert.Equal(t, `{"q":1}`, invalid.Request)
		assert.Equal(t, `opensearch response was invalid, status code = 502, request = {"q":1}`, err.Error())
	})

	t.Run("without request body", func(t *testing.T) {
		resp := &fakeResponse{status: 0, url: "http://es/_cluster/health"}

		_, err := VerifySuccessful(resp)

		var invalid *InvalidResponseError
		require.ErrorAs(t, err, &invalid)
		assert.Contains(t, err.Error(), "status code = 0")
		assert.Contains(t, err.Error(), "http://es/_cluster/health")
	})
}

func TestRequestTrace(t *testing.T) {
	testcases := []struct {
		name string
		resp *fakeResponse
		want string
	}{
		{
			name: "decodes body",
			resp: &fakeResponse{rawRequest: []byte(`{"q":1}`), url: "http://es/_search"},
			want: `{"q":1}`,
		},
		{
			name: "falls back to url",
			resp: &fakeResponse{url: "http://es/_search"},
			want: "http://es/_search",
		},
		{
			name: "empty body is still a body",
			resp: &fakeResponse{rawRequest: []byte{}, url: "http://es/_search"},
			want: "",
		},
		{
			name: "multibyte text",
			resp: &fakeResponse{rawRequest: []byte(`{"q":"検索"}`)},
			want: `{"q":"検索"}`,
		},
		{
			name: "invalid utf-8 replaced",
			resp: &fakeResponse{rawRequest: []byte{'a', 0xff, 'b'}},
			want: "a\uFFFDb",
		},
	}

	for _, tt := range testcases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequestTrace(tt.resp))
		})
	}
}

func TestDescribe(t *testing.T) {
	resp := &fakeResponse{status: 500, url: "http://es/idx/_doc/1"}
	assert.Equal(t, "status=500 valid=false request=http://es/idx/_doc/1", Describe(resp))
}
