// Package models defines the client-side read views of the remote Splitwiser data.
//
// # Models
//
//   - Group: a remote-owned group of member names, created once and never edited here
//   - Expense: a remote-owned expense recorded against one group
//   - NewExpense: the validated payload for creating an expense
//   - Identity: the subject derived from the stored credential
//
// # Design Principles
//
// 1. **Server is authoritative**: nothing here is computed locally (no balances, no ids)
// 2. **Members are names**: payer and participants reference member names, not user ids
// 3. **Exact money**: amounts are decimal.Decimal, never float64
package models
