package opensearch

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeNetworkTimeout ErrorType = "network_timeout"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeConnection     ErrorType = "connection"
	ErrorTypeResponse       ErrorType = "response"
	ErrorTypeUnknown        ErrorType = "unknown"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
)

// SearchError describes a failure outside the response itself: bad input,
// rate limiting or a connection problem.
type SearchError struct {
	Type       ErrorType     `json:"type"`
	Message    string        `json:"message"`
	StatusCode int           `json:"status_code,omitempty"`
	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	Err        error         `json:"-"`
}

func (e *SearchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] %s (HTTP %d)", e.Type, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

func (e *SearchError) IsRetryable() bool {
	return e.Retryable
}

func NewSearchError(errType ErrorType, message string) *SearchError {
	return &SearchError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// ClassifyHTTPError maps a failing status code to an operator-facing
// explanation. It is used for log output next to the response error.
func ClassifyHTTPError(statusCode int, body string) *SearchError {
	e := &SearchError{StatusCode: statusCode, Timestamp: time.Now()}

	switch statusCode {
	case http.StatusUnauthorized:
		e.Type = ErrorTypeValidation
		e.Message = "authentication failed"
		e.Suggestion = "check OPENSEARCH_AUTH_MODE and the credentials it uses"
	case http.StatusForbidden:
		e.Type = ErrorTypeValidation
		e.Message = "access denied"
		e.Suggestion = "check that the IAM role or user may access the domain and index"
	case http.StatusNotFound:
		e.Type = ErrorTypeValidation
		e.Message = "index or endpoint not found"
		e.Suggestion = "check OPENSEARCH_ENDPOINT and the index name"
	case http.StatusRequestTimeout:
		e.Type = ErrorTypeNetworkTimeout
		e.Message = "request timed out"
		e.Retryable = true
		e.RetryAfter = 5 * time.Second
		e.Suggestion = "check network connectivity and cluster load"
	case http.StatusTooManyRequests:
		e.Type = ErrorTypeRateLimit
		e.Message = "rate limit reached"
		e.Retryable = true
		e.RetryAfter = 10 * time.Second
		if strings.Contains(body, "retry after") {
			e.RetryAfter = 30 * time.Second
		}
		e.Suggestion = "lower OPENSEARCH_RATE_LIMIT or the request volume"
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		e.Type = ErrorTypeNetworkTimeout
		e.Message = "OpenSearch server error"
		e.Retryable = true
		e.RetryAfter = 10 * time.Second
		e.Suggestion = "check the cluster health"
	default:
		e.Type = ErrorTypeUnknown
		e.Message = fmt.Sprintf("unexpected HTTP error: %s", body)
		e.Retryable = statusCode >= 500
		e.RetryAfter = 5 * time.Second
	}

	return e
}

// ClassifyConnectionError wraps an error raised before any response arrived.
func ClassifyConnectionError(err error) *SearchError {
	errMsg := err.Error()
	e := &SearchError{Type: ErrorTypeConnection, Timestamp: time.Now(), Err: err}

	switch {
	case strings.Contains(errMsg, "timeout"):
		e.Type = ErrorTypeNetworkTimeout
		e.Message = "connection to OpenSearch timed out"
		e.Retryable = true
		e.RetryAfter = 5 * time.Second
		e.Suggestion = "check network connectivity and OPENSEARCH_ENDPOINT"
	case strings.Contains(errMsg, "connection refused"):
		e.Message = "connection to OpenSearch was refused"
		e.Suggestion = "check the host and port in OPENSEARCH_ENDPOINT"
	case strings.Contains(errMsg, "no such host"):
		e.Message = "OpenSearch host not found"
		e.Suggestion = "check the host name in OPENSEARCH_ENDPOINT"
	default:
		e.Type = ErrorTypeUnknown
		e.Message = fmt.Sprintf("connection error: %v", err)
		e.Retryable = true
		e.RetryAfter = 10 * time.Second
		e.Suggestion = "check network connectivity"
	}

	return e
}
