package api

import (
	"errors"
	"fmt"
	"net/http"
)

// FetchError reports a network failure or a non-2xx response.
type FetchError struct {
	Endpoint string // e.g. "children", "detail"
	ID       string // school id the request was about, if any
	Status   int    // HTTP status, 0 for transport errors
	Cause    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s(%s): HTTP %d %s", e.Endpoint, e.ID, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("fetch %s(%s): %v", e.Endpoint, e.ID, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// ParseError reports a response body that could not be decoded.
type ParseError struct {
	Endpoint string
	Cause    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %v", e.Endpoint, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ErrUnsuccessful is wrapped when the contents endpoint answers
// success=false with a 2xx status.
var ErrUnsuccessful = errors.New("server reported failure")

// ErrBodyTooLarge is wrapped when a response exceeds the client's body cap.
var ErrBodyTooLarge = errors.New("response body too large")

// IsNotFound reports whether err is a 404 FetchError.
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Status == http.StatusNotFound
}
