package models

import "time"

// Identity is the authenticated subject derived from the stored credential.
// It is never stored on its own.
type Identity struct {
	// Subject is the "sub" claim, the user's email for this service.
	Subject string

	// ExpiresAt is the "exp" claim, zero if the token carries none.
	// Informational only: the server decides whether a token is still valid.
	ExpiresAt time.Time
}
