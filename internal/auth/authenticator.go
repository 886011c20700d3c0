package auth

import (
	"context"
)

// Authenticator defines the interface for account registration and login.
// The dev server uses it so handlers stay independent of how users are stored.
type Authenticator interface {
	// Register creates a new user account with the given email and password.
	// Returns the created user or an error if registration fails.
	Register(ctx context.Context, email, password string) (*User, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	Authenticate(ctx context.Context, email, password string) (*User, error)
}
