package models

import "github.com/shopspring/decimal"

// Expense represents one expense recorded in a group.
type Expense struct {
	// Description is what the money was spent on (e.g., "Dinner").
	Description string

	// Amount is the total cost, always positive.
	Amount decimal.Decimal

	// Payer is the member name who paid.
	Payer string

	// Participants are the member names sharing the cost. Never empty.
	Participants []string
}

// NewExpense is a validated expense ready to be submitted for a group.
type NewExpense struct {
	Description  string
	Amount       decimal.Decimal
	Payer        string
	Participants []string
}
