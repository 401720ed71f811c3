package store

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned when the store answers with a non-2xx status.
// Body carries the server's validation messages when present.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// IsNotFound reports whether err is a 404 from the store.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.NotFound()
}

// NotFound reports a 404 answer.
func (e *StatusError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}
