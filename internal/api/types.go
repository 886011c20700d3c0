package api

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitwiser-client/internal/models"
)

// Wire schemas, one per endpoint. Responses are validated here so callers
// never see a half-shaped payload.

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

func (r tokenResponse) validate() error {
	if r.AccessToken == "" {
		return fmt.Errorf("access_token missing")
	}
	return nil
}

type createGroupRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type groupResponse struct {
	GroupID string   `json:"group_id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func (r groupResponse) validate(requireID bool) error {
	if requireID && r.GroupID == "" {
		return fmt.Errorf("group_id missing")
	}
	if r.Name == "" {
		return fmt.Errorf("group name missing")
	}
	if r.Members == nil {
		return fmt.Errorf("group %q: members missing", r.Name)
	}
	return nil
}

func (r groupResponse) model() models.Group {
	return models.Group{
		ID:      r.GroupID,
		Name:    r.Name,
		Members: append([]string(nil), r.Members...),
	}
}

type expenseRequest struct {
	Description  string      `json:"description"`
	Amount       json.Number `json:"amount"`
	Payer        string      `json:"payer"`
	Participants []string    `json:"participants"`
}

func newExpenseRequest(e models.NewExpense) expenseRequest {
	return expenseRequest{
		Description:  e.Description,
		Amount:       json.Number(e.Amount.String()),
		Payer:        e.Payer,
		Participants: append([]string(nil), e.Participants...),
	}
}

type expenseResponse struct {
	Description  string           `json:"description"`
	Amount       *decimal.Decimal `json:"amount"`
	Payer        string           `json:"payer"`
	Participants []string         `json:"participants"`
}

func (r expenseResponse) validate() error {
	if r.Description == "" {
		return fmt.Errorf("expense description missing")
	}
	if r.Amount == nil {
		return fmt.Errorf("expense %q: amount missing", r.Description)
	}
	if r.Amount.IsNegative() {
		return fmt.Errorf("expense %q: negative amount", r.Description)
	}
	if r.Payer == "" {
		return fmt.Errorf("expense %q: payer missing", r.Description)
	}
	if len(r.Participants) == 0 {
		return fmt.Errorf("expense %q: participants missing", r.Description)
	}
	return nil
}

func (r expenseResponse) model() models.Expense {
	return models.Expense{
		Description:  r.Description,
		Amount:       *r.Amount,
		Payer:        r.Payer,
		Participants: append([]string(nil), r.Participants...),
	}
}

// errorResponse is the body non-2xx responses are expected to carry.
type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// message returns the detail when it is a plain string. FastAPI-style
// validation errors send a list instead; those fall back to the default.
func (r errorResponse) message() string {
	var s string
	if err := json.Unmarshal(r.Detail, &s); err != nil {
		return ""
	}
	return s
}
