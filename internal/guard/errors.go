package guard

import "fmt"

// ServerReportedError carries the structured error the server returned.
type ServerReportedError struct {
	Payload error
}

func (e *ServerReportedError) Error() string {
	return fmt.Sprintf("opensearch server reported an error: %v", e.Payload)
}

func (e *ServerReportedError) Unwrap() error {
	return e.Payload
}

// InvalidResponseError is returned when a call failed without a structured
// server error.
type InvalidResponseError struct {
	StatusCode int
	Request    string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("opensearch response was invalid, status code = %d, request = %s", e.StatusCode, e.Request)
}

// NullArgumentError reports a required argument that was nil.
type NullArgumentError struct {
	Name string
}

func (e *NullArgumentError) Error() string {
	return fmt.Sprintf("argument %s cannot be nil", e.Name)
}
