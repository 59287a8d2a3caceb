package matchplay

import (
	"errors"
	"fmt"
)

// ErrNotFound matches a ServerError carrying HTTP 404, for every endpoint.
var ErrNotFound = errors.New("matchplay: resource not found")

// TransportError reports that no HTTP response was obtained: connection,
// DNS, timeout, or a failure reading the API key.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError reports a response whose status is outside 200-299. Body holds
// the start of the response body for diagnostics; it is never decoded.
type ServerError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: server returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: server returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *ServerError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}

// DecodeError reports a response body that does not have the expected shape.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
