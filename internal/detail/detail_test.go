package detail

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitwiser-client/internal/models"
)

type fakeFetcher struct {
	group      models.Group
	expenses   []models.Expense
	groupErr   error
	expenseErr error
	calls      atomic.Int32
}

func (f *fakeFetcher) FetchGroupDetail(ctx context.Context, groupID string) (models.Group, error) {
	f.calls.Add(1)
	if f.groupErr != nil {
		return models.Group{}, f.groupErr
	}
	g := f.group
	g.ID = groupID
	return g, nil
}

func (f *fakeFetcher) FetchExpenses(ctx context.Context, groupID string) ([]models.Expense, error) {
	f.calls.Add(1)
	if f.expenseErr != nil {
		return nil, f.expenseErr
	}
	return f.expenses, nil
}

func tripData() Data {
	return Data{
		Group: models.Group{ID: "g1", Name: "Trip", Members: []string{"Alice", "Bob", "Cy"}},
		Expenses: []models.Expense{
			{Description: "Taxi", Amount: decimal.NewFromInt(12), Payer: "Bob", Participants: []string{"Alice", "Bob"}},
		},
	}
}

func TestLoad(t *testing.T) {
	data := tripData()
	f := &fakeFetcher{group: data.Group, expenses: data.Expenses}

	got, err := Load(context.Background(), f, "g1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Group.Name != "Trip" || len(got.Expenses) != 1 {
		t.Errorf("unexpected data: %+v", got)
	}
	if f.calls.Load() != 2 {
		t.Errorf("expected 2 fetches, got %d", f.calls.Load())
	}
}

func TestLoad_EitherFailureFailsActivation(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name string
		f    *fakeFetcher
	}{
		{name: "membership fails", f: &fakeFetcher{groupErr: boom}},
		{name: "expenses fail", f: &fakeFetcher{group: tripData().Group, expenseErr: boom}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), tt.f, "g1")
			if !errors.Is(err, boom) {
				t.Errorf("expected boom, got %v", err)
			}
		})
	}
}

func TestSession_Selectors(t *testing.T) {
	s := New("g1", 7, tripData())

	if s.GroupID() != "g1" || s.Generation() != 7 {
		t.Errorf("unexpected binding: %s/%d", s.GroupID(), s.Generation())
	}
	if s.Payer() != "" {
		t.Errorf("expected no default payer, got %q", s.Payer())
	}
	if got := s.PayerOptions(); len(got) != 3 {
		t.Errorf("expected one payer option per member, got %v", got)
	}
	for _, row := range s.ParticipantStates() {
		if !row.Checked {
			t.Errorf("expected %s to start checked", row.Name)
		}
	}

	if err := s.SetParticipant("Cy", false); err != nil {
		t.Fatalf("SetParticipant failed: %v", err)
	}
	if got := s.Participants(); len(got) != 2 || got[0] != "Alice" || got[1] != "Bob" {
		t.Errorf("expected [Alice Bob], got %v", got)
	}

	if err := s.SelectPayer("Mallory"); !errors.Is(err, ErrUnknownMember) {
		t.Errorf("expected ErrUnknownMember, got %v", err)
	}
	if err := s.SelectPayer("Alice"); err != nil {
		t.Fatalf("SelectPayer failed: %v", err)
	}

	form := s.Form("Dinner", "40")
	if form.Payer != "Alice" || len(form.Participants) != 2 {
		t.Errorf("unexpected form: %+v", form)
	}

	s.Refresh(tripData())
	if s.Payer() != "" || len(s.Participants()) != 3 {
		t.Errorf("expected Refresh to reset selectors, payer=%q participants=%v", s.Payer(), s.Participants())
	}
}

func TestSession_DuplicateMembersGiveOneOption(t *testing.T) {
	s := New("g1", 1, Data{Group: models.Group{Name: "Trip", Members: []string{"Alice", "Alice", "Bob"}}})
	if got := s.PayerOptions(); len(got) != 2 {
		t.Errorf("expected 2 payer options, got %v", got)
	}
}

func TestValidate(t *testing.T) {
	valid := ExpenseForm{Description: "Dinner", Amount: "40.00", Payer: "Alice", Participants: []string{"Alice", "Bob"}}

	expense, err := Validate(valid)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !expense.Amount.Equal(decimal.NewFromInt(40)) {
		t.Errorf("amount: expected 40, got %s", expense.Amount)
	}

	tests := []struct {
		name   string
		mutate func(f *ExpenseForm)
	}{
		{name: "empty description", mutate: func(f *ExpenseForm) { f.Description = "" }},
		{name: "blank description", mutate: func(f *ExpenseForm) { f.Description = "   " }},
		{name: "empty amount", mutate: func(f *ExpenseForm) { f.Amount = "" }},
		{name: "non-numeric amount", mutate: func(f *ExpenseForm) { f.Amount = "forty" }},
		{name: "zero amount", mutate: func(f *ExpenseForm) { f.Amount = "0" }},
		{name: "negative amount", mutate: func(f *ExpenseForm) { f.Amount = "-5" }},
		{name: "no payer", mutate: func(f *ExpenseForm) { f.Payer = "" }},
		{name: "no participants", mutate: func(f *ExpenseForm) { f.Participants = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := valid
			form.Participants = append([]string(nil), valid.Participants...)
			tt.mutate(&form)
			if _, err := Validate(form); !errors.Is(err, ErrIncompleteExpense) {
				t.Errorf("expected ErrIncompleteExpense, got %v", err)
			}
		})
	}
}
