package clients

import (
	"errors"
	"fmt"

	"movie-catalog/internal/validation"
)

// ErrNotFound matches a RemoteError for a 404 response.
var ErrNotFound = errors.New("not found")

// RemoteError is a failed call to the catalog service: either a transport
// failure (StatusCode 0) or a non-2xx response.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Fields     map[string]string // per-field messages of a 400 response
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": remote failure"
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}

// Validation returns the server-side field messages as a validation error.
func (e *RemoteError) Validation() (*validation.Error, bool) {
	if len(e.Fields) == 0 {
		return nil, false
	}
	verr := &validation.Error{}
	for field, msg := range e.Fields {
		verr.Add(field, msg)
	}
	return verr, true
}

// AsRemoteError extracts a RemoteError from err.
func AsRemoteError(err error) (*RemoteError, bool) {
	var rerr *RemoteError
	if errors.As(err, &rerr) {
		return rerr, true
	}
	return nil, false
}
