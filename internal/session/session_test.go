package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/splitwiser-client/internal/auth"
	"github.com/mmynk/splitwiser-client/internal/storage"
	"github.com/mmynk/splitwiser-client/internal/storage/sqlite"
)

func validToken(t *testing.T, subject string) string {
	t.Helper()
	token, err := auth.NewJWTManager("test-secret", time.Hour).Generate(subject)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

func TestStore_NoCredential(t *testing.T) {
	s := New(storage.NewMemory(), nil)

	if _, ok := s.Credential(); ok {
		t.Error("expected no credential")
	}
	if _, ok := s.CurrentIdentity(); ok {
		t.Error("expected no identity")
	}
}

func TestStore_IdentityFromCredential(t *testing.T) {
	s := New(storage.NewMemory(), nil)
	token := validToken(t, "a@x.com")

	if err := s.SetCredential(token); err != nil {
		t.Fatalf("SetCredential failed: %v", err)
	}

	got, ok := s.Credential()
	if !ok || got != token {
		t.Fatalf("Credential: expected stored token, got %q (ok=%v)", got, ok)
	}

	identity, ok := s.CurrentIdentity()
	if !ok {
		t.Fatal("expected identity")
	}
	if identity.Subject != "a@x.com" {
		t.Errorf("subject: expected 'a@x.com', got '%s'", identity.Subject)
	}
	if identity.ExpiresAt.IsZero() {
		t.Error("expected expiry to be decoded")
	}
}

func TestStore_CorruptCredentialIsPurged(t *testing.T) {
	backend := storage.NewMemory()
	s := New(backend, nil)

	if err := s.SetCredential("not-a-token"); err != nil {
		t.Fatalf("SetCredential failed: %v", err)
	}

	if _, ok := s.CurrentIdentity(); ok {
		t.Fatal("expected corrupt credential to yield no identity")
	}
	if _, err := backend.Get(context.Background(), CredentialKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected credential to be purged, got %v", err)
	}
	// A second derivation is stable and does not recurse.
	if _, ok := s.CurrentIdentity(); ok {
		t.Error("expected no identity on second call")
	}
}

func TestStore_ClearCredential(t *testing.T) {
	s := New(storage.NewMemory(), nil)
	if err := s.SetCredential(validToken(t, "a@x.com")); err != nil {
		t.Fatalf("SetCredential failed: %v", err)
	}

	if err := s.ClearCredential(); err != nil {
		t.Fatalf("ClearCredential failed: %v", err)
	}
	if _, ok := s.Credential(); ok {
		t.Error("expected credential to be gone")
	}
}

func TestStore_SurvivesReload(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")
	token := validToken(t, "a@x.com")

	first, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := New(first, nil).SetCredential(token); err != nil {
		t.Fatalf("SetCredential failed: %v", err)
	}
	first.Close()

	second, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer second.Close()

	identity, ok := New(second, nil).CurrentIdentity()
	if !ok || identity.Subject != "a@x.com" {
		t.Errorf("expected identity 'a@x.com' after reload, got %+v (ok=%v)", identity, ok)
	}
}
