package opensearch

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// recordingTransport copies each request and its status into the Exchange
// carried by the request context. Requests without one pass straight through.
type recordingTransport struct {
	next http.RoundTripper
}

func newRecordingTransport(next http.RoundTripper) *recordingTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &recordingTransport{next: next}
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ex, ok := ExchangeFromContext(req.Context())
	if !ok {
		return t.next.RoundTrip(req)
	}

	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}

		clone := req.Clone(req.Context())
		clone.Body = io.NopCloser(bytes.NewReader(body))
		clone.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		req = clone
	}

	ex.roundTrips++
	ex.Method = req.Method
	ex.URL = req.URL.String()
	ex.Body = body
	ex.Status = 0

	resp, err := t.next.RoundTrip(req)
	if resp != nil {
		ex.Status = resp.StatusCode
	}
	return resp, err
}
