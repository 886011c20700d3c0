package orchestrator

import "github.com/mmynk/splitwiser-client/internal/detail"

// Action is a user intent accepted by the orchestrator.
type Action interface {
	action()
}

type (
	Register struct{ Username, Password string }
	Login    struct{ Username, Password string }
	Logout   struct{}

	// RefreshGroups reloads the group list.
	RefreshGroups struct{}

	AddMember    struct{ Name string }
	RemoveMember struct{ Name string }
	CreateGroup  struct{ Name string }

	// Open activates the detail view of a group.
	Open struct{ GroupID string }
	// Back leaves the detail view, or abandons a pending Open.
	Back struct{}

	SelectPayer   struct{ Name string }
	SubmitExpense struct{ Form detail.ExpenseForm }

	// AddExpense submits an expense paid by the selected payer and shared
	// by the checked participants.
	AddExpense struct{ Description, Amount string }

	// SetParticipant checks or unchecks one member of the participants selector.
	SetParticipant struct {
		Name    string
		Checked bool
	}
)

func (Register) action() {}
func (Login) action() {}
func (Logout) action() {}
func (RefreshGroups) action() {}
func (AddMember) action() {}
func (RemoveMember) action() {}
func (CreateGroup) action() {}
func (Open) action() {}
func (Back) action() {}
func (SelectPayer) action() {}
func (SetParticipant) action() {}
func (SubmitExpense) action() {}
func (AddExpense) action() {}
