// Package guard verifies responses returned by the search client and provides
// the small argument checks used by code that talks to it.
package guard

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// Response is the view of a search client result needed to decide whether
// the call succeeded.
type Response interface {
	IsValid() bool
	// ServerError returns the structured error reported by the server, or nil.
	ServerError() error
	StatusCode() int
	// RawRequest returns the request body that was sent, or nil when none was captured.
	RawRequest() []byte
	RequestURL() string
}

// VerifySuccessful returns resp unchanged when it is valid. Otherwise it
// returns a *ServerReportedError when the server sent a structured error, or
// an *InvalidResponseError describing the status code and request.
func VerifySuccessful[R Response](resp R) (R, error) {
	if resp.IsValid() {
		return resp, nil
	}

	if serverErr := resp.ServerError(); serverErr != nil {
		return resp, &ServerReportedError{Payload: serverErr}
	}

	return resp, &InvalidResponseError{
		StatusCode: resp.StatusCode(),
		Request:    RequestTrace(resp),
	}
}

// RequestTrace returns the request body as UTF-8 text, falling back to the
// request URL when no body was captured.
func RequestTrace(resp Response) string {
	raw := resp.RawRequest()
	if raw == nil {
		return resp.RequestURL()
	}
	return decodeUTF8(raw)
}

func decodeUTF8(raw []byte) string {
	decoded, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "\uFFFD")
	}
	return string(decoded)
}

// Describe renders a one-line summary of resp for log output.
func Describe(resp Response) string {
	return fmt.Sprintf("status=%d valid=%t request=%s", resp.StatusCode(), resp.IsValid(), RequestTrace(resp))
}
