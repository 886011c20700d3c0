package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mmynk/splitwiser-client/internal/models"
	"github.com/mmynk/splitwiser-client/internal/orchestrator"
)

// errReported marks a failure the user already saw as a notification.
var errReported = errors.New("reported")

type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }

func (e reportedError) Unwrap() []error { return []error{e.err, errReported} }

// quiet tags orchestrator failures that were already notified so Execute
// does not print them twice.
func quiet(err error) error {
	switch {
	case err == nil,
		errors.Is(err, orchestrator.ErrNotAvailable),
		errors.Is(err, orchestrator.ErrEmptyGroupID),
		errors.Is(err, orchestrator.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return reportedError{err: err}
}

func printGroups(out io.Writer, groups []models.Group) {
	if len(groups) == 0 {
		fmt.Fprintln(out, "No groups yet.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMEMBERS")
	for _, g := range groups {
		fmt.Fprintf(w, "%s\t%s\t%s\n", g.ID, g.Name, strings.Join(g.Members, ", "))
	}
	w.Flush()
}

func printExpenses(out io.Writer, expenses []models.Expense) {
	if len(expenses) == 0 {
		fmt.Fprintln(out, "No expenses yet.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DESCRIPTION\tAMOUNT\tPAID BY\tSPLIT BETWEEN")
	for _, e := range expenses {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Description, e.Amount.StringFixed(2), e.Payer, strings.Join(e.Participants, ", "))
	}
	w.Flush()
}

func printDetail(out io.Writer, d *orchestrator.DetailState) {
	fmt.Fprintf(out, "%s\n", d.Group.Name)
	fmt.Fprintf(out, "Members: %s\n\n", strings.Join(d.Group.Members, ", "))
	printExpenses(out, d.Expenses)
}

func printForm(out io.Writer, d *orchestrator.DetailState) {
	payer := d.Payer
	if payer == "" {
		payer = "(none)"
	}
	fmt.Fprintf(out, "Payer: %s\n", payer)
	fmt.Fprint(out, "Participants:")
	for _, p := range d.Participants {
		box := "[ ]"
		if p.Checked {
			box = "[x]"
		}
		fmt.Fprintf(out, " %s %s", box, p.Name)
	}
	fmt.Fprintln(out)
}
