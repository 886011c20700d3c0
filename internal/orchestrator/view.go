package orchestrator

import (
	"github.com/mmynk/splitwiser-client/internal/detail"
	"github.com/mmynk/splitwiser-client/internal/models"
)

// View is the top-level screen. Exactly one is active at a time.
type View int

const (
	ViewAuth View = iota
	ViewGroupList
	ViewGroupDetail
)

func (v View) String() string {
	switch v {
	case ViewAuth:
		return "auth"
	case ViewGroupList:
		return "group_list"
	case ViewGroupDetail:
		return "group_detail"
	default:
		return "unknown"
	}
}

// State is a copy of everything the rendering layer needs.
type State struct {
	View View

	// GroupID is the bound group, set only in ViewGroupDetail.
	GroupID string

	// PendingGroupID is a group being opened whose data has not arrived yet.
	// The view stays on the group list until it does.
	PendingGroupID string

	Identity models.Identity
	LoggedIn bool

	Groups []models.Group

	// Members is the in-progress member list of the create-group form.
	Members        []string
	CanCreateGroup bool

	Detail *DetailState
}

// DetailState is the open group's data and expense form selectors.
type DetailState struct {
	Group        models.Group
	Expenses     []models.Expense
	PayerOptions []string
	Payer        string
	Participants []detail.Participant
}
