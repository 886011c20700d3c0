package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitwiser-client/internal/auth"
	"github.com/mmynk/splitwiser-client/internal/storage"
)

var ErrGroupNotFound = errors.New("group not found")

// Group is a group as the server holds it.
type Group struct {
	ID           string    `json:"group_id"`
	Name         string    `json:"name"`
	Members      []string  `json:"members"`
	CreatorEmail string    `json:"creator_email"`
	CreatedAt    time.Time `json:"created_at"`
	Expenses     []Expense `json:"expenses"`
}

// Expense is an expense as the server holds it.
type Expense struct {
	ID           string          `json:"expense_id"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Payer        string          `json:"payer"`
	Participants []string        `json:"participants"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (g *Group) hasMember(name string) bool {
	for _, m := range g.Members {
		if m == name {
			return true
		}
	}
	return false
}

// Store keeps users and groups as JSON records in a key/value backend, so
// the server runs on storage.Memory or on a SQLite file alike.
type Store struct {
	mu      sync.Mutex
	backend storage.Store
	now     func() time.Time
}

// NewStore creates a Store on backend.
func NewStore(backend storage.Store) *Store {
	return &Store{backend: backend, now: time.Now}
}

func userKey(email string) string { return "user:" + email }
func groupKey(id string) string { return "group:" + id }
func ownedKey(email string) string { return "owned:" + email }

// CreateUser implements auth.UserStorage.
func (s *Store) CreateUser(ctx context.Context, user *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.backend.Get(ctx, userKey(user.Email)); err == nil {
		return auth.ErrEmailExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return s.put(ctx, userKey(user.Email), user)
}

// GetUserByEmail implements auth.UserStorage.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var user auth.User
	if err := s.get(ctx, userKey(email), &user); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateGroup saves a new group owned by creator. It assigns ID and CreatedAt.
func (s *Store) CreateGroup(ctx context.Context, creator string, group *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group.ID = uuid.NewString()
	group.CreatorEmail = creator
	group.CreatedAt = s.now().UTC()
	if group.Expenses == nil {
		group.Expenses = []Expense{}
	}

	ids, err := s.owned(ctx, creator)
	if err != nil {
		return err
	}
	if err := s.put(ctx, groupKey(group.ID), group); err != nil {
		return err
	}
	return s.put(ctx, ownedKey(creator), append(ids, group.ID))
}

// GetGroup returns ErrGroupNotFound when id is unknown.
func (s *Store) GetGroup(ctx context.Context, id string) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.group(ctx, id)
}

// ListGroups returns the groups created by creator, oldest first.
func (s *Store) ListGroups(ctx context.Context, creator string) ([]*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.owned(ctx, creator)
	if err != nil {
		return nil, err
	}
	groups := make([]*Group, 0, len(ids))
	for _, id := range ids {
		g, err := s.group(ctx, id)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// AddExpense appends an expense to group id. It assigns ID and CreatedAt.
func (s *Store) AddExpense(ctx context.Context, id string, expense *Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.group(ctx, id)
	if err != nil {
		return err
	}
	expense.ID = uuid.NewString()
	expense.CreatedAt = s.now().UTC()
	g.Expenses = append(g.Expenses, *expense)
	return s.put(ctx, groupKey(id), g)
}

func (s *Store) group(ctx context.Context, id string) (*Group, error) {
	var g Group
	if err := s.get(ctx, groupKey(id), &g); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (s *Store) owned(ctx context.Context, email string) ([]string, error) {
	var ids []string
	if err := s.get(ctx, ownedKey(email), &ids); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return ids, nil
}

func (s *Store) get(ctx context.Context, key string, v any) error {
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.backend.Put(ctx, key, string(data))
}
