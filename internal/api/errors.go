package api

import (
	"errors"
	"net/http"
)

var (
	// ErrNoCredential means a credentialed operation was attempted while logged out.
	// No request is sent.
	ErrNoCredential = errors.New("no credential available")

	// ErrUnauthorized means the server rejected the credential (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedResponse means a success response did not match its schema.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrRequestFailed means the server answered with a non-success status.
	ErrRequestFailed = errors.New("request failed")
)

// Error is the uniform failure returned by every gateway operation.
// Message is safe to show to the user: the server's "detail" when present,
// otherwise the operation's default message.
type Error struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Message extracts the user-facing message from any error the gateway returns.
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func statusCause(status int) error {
	if status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return ErrRequestFailed
}
