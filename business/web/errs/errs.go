// Package errs provides the error types handlers use to control what a
// client sees when a request fails.
package errs

import "errors"

// Response is the form used for API responses from failures in the API.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted wraps an error whose message is safe to show to the client along
// with the status to respond with. Fields names the request fields at fault
// when there are any.
type Trusted struct {
	Err    error
	Status int
	Fields map[string]string
}

// NewTrusted wraps a provided error with an HTTP status code. Handlers use
// this for the failures they expect, such as a missing block or a bad
// transaction.
func NewTrusted(err error, status int) error {
	return &Trusted{Err: err, Status: status}
}

// NewFieldsError wraps an error caused by a single request field.
func NewFieldsError(field string, err error, status int) error {
	return &Trusted{
		Err:    err,
		Status: status,
		Fields: map[string]string{field: err.Error()},
	}
}

// Error implements the error interface.
func (t *Trusted) Error() string {
	return t.Err.Error()
}

// Unwrap gives errors.Is and errors.As access to the wrapped error.
func (t *Trusted) Unwrap() error {
	return t.Err
}

// IsTrusted reports whether a Trusted error exists in the chain.
func IsTrusted(err error) bool {
	var t *Trusted
	return errors.As(err, &t)
}

// GetTrusted returns the Trusted error from the chain or nil.
func GetTrusted(err error) *Trusted {
	var t *Trusted
	if !errors.As(err, &t) {
		return nil
	}
	return t
}
