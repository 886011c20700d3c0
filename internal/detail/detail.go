// Package detail holds the state of one open group: its members, its
// expenses, and the expense form selectors derived from the members.
package detail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitwiser-client/internal/models"
)

var (
	ErrIncompleteExpense = errors.New("please fill out all expense fields")
	ErrUnknownMember     = errors.New("not a member of this group")
)

// Fetcher loads the remote state a detail session is built from.
type Fetcher interface {
	FetchGroupDetail(ctx context.Context, groupID string) (models.Group, error)
	FetchExpenses(ctx context.Context, groupID string) ([]models.Expense, error)
}

// Data is everything one activation needs before it can be shown.
type Data struct {
	Group    models.Group
	Expenses []models.Expense
}

// Load fetches membership and expenses concurrently. If either fails the
// whole load fails and the other call is cancelled.
func Load(ctx context.Context, f Fetcher, groupID string) (Data, error) {
	var data Data
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		group, err := f.FetchGroupDetail(ctx, groupID)
		if err != nil {
			return err
		}
		data.Group = group
		return nil
	})
	g.Go(func() error {
		expenses, err := f.FetchExpenses(ctx, groupID)
		if err != nil {
			return err
		}
		data.Expenses = expenses
		return nil
	})

	if err := g.Wait(); err != nil {
		return Data{}, err
	}
	return data, nil
}

// Participant is one row of the participants selector.
type Participant struct {
	Name    string
	Checked bool
}

// Session is bound to one group id for its lifetime. It is not safe for
// concurrent use; the orchestrator owns it.
type Session struct {
	groupID    string
	generation uint64

	group    models.Group
	expenses []models.Expense
	members  []string

	payer    string
	selected map[string]bool
}

// New binds a session to groupID. generation identifies the activation so
// late results from an abandoned binding can be told apart.
func New(groupID string, generation uint64, data Data) *Session {
	s := &Session{groupID: groupID, generation: generation}
	s.Refresh(data)
	return s
}

// Refresh replaces the session's data with a fresh server copy and resets
// the selectors: no payer, every member checked.
func (s *Session) Refresh(data Data) {
	s.group = data.Group
	s.expenses = append([]models.Expense(nil), data.Expenses...)
	s.members = uniqueMembers(data.Group.Members)
	s.payer = ""
	s.selected = make(map[string]bool, len(s.members))
	for _, m := range s.members {
		s.selected[m] = true
	}
}

// GroupID returns the bound group id.
func (s *Session) GroupID() string { return s.groupID }

// Generation returns the activation number the session was created with.
func (s *Session) Generation() uint64 { return s.generation }

func (s *Session) Group() models.Group { return s.group }

func (s *Session) Payer() string { return s.payer }

func (s *Session) Members() []string { return append([]string(nil), s.members...) }

// Expenses returns the server-ordered expense list.
func (s *Session) Expenses() []models.Expense {
	return append([]models.Expense(nil), s.expenses...)
}

// PayerOptions lists one selectable value per member.
func (s *Session) PayerOptions() []string {
	return s.Members()
}

// SelectPayer sets the payer. An empty name clears the selection.
func (s *Session) SelectPayer(name string) error {
	if name == "" {
		s.payer = ""
		return nil
	}
	if _, ok := s.selected[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMember, name)
	}
	s.payer = name
	return nil
}

// SetParticipant checks or unchecks one member in the participants selector.
func (s *Session) SetParticipant(name string, checked bool) error {
	if _, ok := s.selected[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMember, name)
	}
	s.selected[name] = checked
	return nil
}

// ParticipantStates returns the selector rows in member order.
func (s *Session) ParticipantStates() []Participant {
	rows := make([]Participant, 0, len(s.members))
	for _, m := range s.members {
		rows = append(rows, Participant{Name: m, Checked: s.selected[m]})
	}
	return rows
}

// Participants returns the checked members in member order.
func (s *Session) Participants() []string {
	var names []string
	for _, m := range s.members {
		if s.selected[m] {
			names = append(names, m)
		}
	}
	return names
}

// Form builds an expense form from the current selectors.
func (s *Session) Form(description, amount string) ExpenseForm {
	return ExpenseForm{
		Description:  description,
		Amount:       amount,
		Payer:        s.payer,
		Participants: s.Participants(),
	}
}

// ExpenseForm is the raw, unvalidated expense input.
type ExpenseForm struct {
	Description  string
	Amount       string
	Payer        string
	Participants []string
}

// Validate checks the form without contacting the server: description
// non-empty, amount a positive number, payer set, participants non-empty.
// Every failure wraps ErrIncompleteExpense.
func Validate(form ExpenseForm) (models.NewExpense, error) {
	description := strings.TrimSpace(form.Description)
	if description == "" {
		return models.NewExpense{}, fmt.Errorf("%w: description is required", ErrIncompleteExpense)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(form.Amount))
	if err != nil || !amount.IsPositive() {
		return models.NewExpense{}, fmt.Errorf("%w: amount must be a positive number", ErrIncompleteExpense)
	}

	if form.Payer == "" {
		return models.NewExpense{}, fmt.Errorf("%w: payer is required", ErrIncompleteExpense)
	}
	if len(form.Participants) == 0 {
		return models.NewExpense{}, fmt.Errorf("%w: at least one participant is required", ErrIncompleteExpense)
	}

	return models.NewExpense{
		Description:  description,
		Amount:       amount,
		Payer:        form.Payer,
		Participants: append([]string(nil), form.Participants...),
	}, nil
}

func uniqueMembers(members []string) []string {
	seen := make(map[string]bool, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
