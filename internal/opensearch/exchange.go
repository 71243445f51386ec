package opensearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	opensearch "github.com/opensearch-project/opensearch-go/v4"

	"github.com/ca-srg/searchguard/internal/guard"
)

// Exchange records one call made through the client: what was sent, the
// status that came back and the error the library returned. It implements
// guard.Response.
type Exchange struct {
	Operation  string
	Method     string
	URL        string
	Body       []byte
	Status     int
	Err        error
	roundTrips int
}

var _ guard.Response = (*Exchange)(nil)

func (e *Exchange) IsValid() bool {
	return e.Err == nil && e.Status >= http.StatusOK && e.Status < http.StatusMultipleChoices
}

// ServerError returns the error document parsed by the library, or nil when
// the server did not send one. A body the library could not match to an
// error shape (a regular API response such as {"found":false}) is not an
// error document.
func (e *Exchange) ServerError() error {
	if e.Err == nil {
		return nil
	}

	var structErr *opensearch.StructError
	if errors.As(e.Err, &structErr) {
		return structErr
	}

	var stringErr *opensearch.StringError
	if errors.As(e.Err, &stringErr) {
		if isAPIResponse(stringErr.Err) {
			return nil
		}
		return stringErr
	}

	var messageErr *opensearch.MessageError
	if errors.As(e.Err, &messageErr) {
		return messageErr
	}

	var reasonErr *opensearch.ReasonError
	if errors.As(e.Err, &reasonErr) {
		return reasonErr
	}

	var plainErr *opensearch.Error
	if errors.As(e.Err, &plainErr) {
		return plainErr
	}

	return nil
}

// isAPIResponse reports whether body is a JSON object without an "error"
// member. The library falls back to a StringError holding the whole body
// for those.
func isAPIResponse(body string) bool {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return false
	}
	_, hasError := doc["error"]
	return !hasError
}

func (e *Exchange) StatusCode() int {
	return e.Status
}

func (e *Exchange) RawRequest() []byte {
	return e.Body
}

func (e *Exchange) RequestURL() string {
	return e.URL
}

// Responded reports whether any HTTP response was received.
func (e *Exchange) Responded() bool {
	return e.Status != 0
}

// RoundTrips is the number of HTTP attempts the transport saw, including
// retries made by the library.
func (e *Exchange) RoundTrips() int {
	return e.roundTrips
}

// reset clears the outcome before another attempt.
func (e *Exchange) reset() {
	e.Method, e.URL, e.Body = "", "", nil
	e.Status, e.Err = 0, nil
	e.roundTrips = 0
}

type exchangeKey struct{}

// WithExchange returns a context whose requests are recorded into ex.
func WithExchange(ctx context.Context, ex *Exchange) context.Context {
	return context.WithValue(ctx, exchangeKey{}, ex)
}

// ExchangeFromContext returns the Exchange attached to ctx, if any.
func ExchangeFromContext(ctx context.Context) (*Exchange, bool) {
	ex, ok := ctx.Value(exchangeKey{}).(*Exchange)
	return ex, ok
}
