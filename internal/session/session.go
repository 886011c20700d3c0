// Package session owns the client's authentication state: the stored bearer
// token and the identity derived from it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/splitwiser-client/internal/auth"
	"github.com/mmynk/splitwiser-client/internal/models"
	"github.com/mmynk/splitwiser-client/internal/storage"
)

// CredentialKey is the fixed storage key the bearer token lives under.
const CredentialKey = "access_token"

// Store is the sole source of truth for whether a user is logged in and who
// they are. It persists the token through a storage.Store.
type Store struct {
	backend storage.Store
	logger  *slog.Logger
	timeout time.Duration
}

// New creates a session store over the given backend.
func New(backend storage.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// SetCredential persists the token. It does not change any view state.
func (s *Store) SetCredential(token string) error {
	ctx, cancel := s.context()
	defer cancel()
	if err := s.backend.Put(ctx, CredentialKey, token); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// Credential returns the stored token, if any. A storage failure is logged
// and reported as absent.
func (s *Store) Credential() (string, bool) {
	ctx, cancel := s.context()
	defer cancel()
	token, err := s.backend.Get(ctx, CredentialKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("Failed to read credential", "error", err)
		}
		return "", false
	}
	return token, token != ""
}

// ClearCredential removes the stored token.
func (s *Store) ClearCredential() error {
	ctx, cancel := s.context()
	defer cancel()
	if err := s.backend.Delete(ctx, CredentialKey); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// CurrentIdentity decodes the stored token's payload. See ValidateAndMaybeClear.
func (s *Store) CurrentIdentity() (models.Identity, bool) {
	return s.ValidateAndMaybeClear()
}

// ValidateAndMaybeClear returns the identity of the stored credential.
// A credential that fails to decode is purged, and the result is absent:
// a corrupt token never leaves the client looking logged in.
func (s *Store) ValidateAndMaybeClear() (models.Identity, bool) {
	token, ok := s.Credential()
	if !ok {
		return models.Identity{}, false
	}

	claims, err := auth.Decode(token)
	if err != nil {
		s.logger.Warn("Discarding undecodable credential", "error", err)
		if err := s.ClearCredential(); err != nil {
			s.logger.Error("Failed to purge credential", "error", err)
		}
		return models.Identity{}, false
	}

	identity := models.Identity{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, true
}

func (s *Store) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}
