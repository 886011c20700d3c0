package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitwiser-client/internal/orchestrator"
)

const shellHelp = `Commands:
  register EMAIL PASSWORD    create an account
  login EMAIL PASSWORD       log in
  logout                     log out
  whoami                     show the logged-in identity
  groups                     list groups (refreshes)
  member add NAME            add a member to the new group
  member rm NAME             remove a member from the new group
  members                    show the new group's members
  create NAME                create a group from the members
  open GROUP_ID              open a group
  back                       return to the group list
  payer NAME                 choose who paid
  include NAME / exclude NAME  toggle a participant
  form                       show payer and participants
  expense AMOUNT DESCRIPTION add an expense with the current form
  help                       show this help
  exit                       leave the shell`

func init() {
	rootCmd.AddCommand(shellCmd)
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close()
		return repl(cmd.Context(), a, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// repl reads commands until EOF or exit. Action failures are shown as
// notifications and do not end the session.
func repl(ctx context.Context, a *app, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		s, err := a.state(ctx)
		if err != nil {
			return err
		}
		fmt.Fprint(out, prompt(s))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			fmt.Fprintln(out, "Bye")
			return nil
		}
		if err := runShellCommand(ctx, a, out, args); err != nil {
			a.logger.Debug("Shell command failed", "command", args[0], "error", err)
		}
	}
}

func prompt(s orchestrator.State) string {
	switch s.View {
	case orchestrator.ViewGroupDetail:
		name := s.GroupID
		if s.Detail != nil {
			name = s.Detail.Group.Name
		}
		return fmt.Sprintf("%s:%s> ", s.Identity.Subject, name)
	case orchestrator.ViewGroupList:
		return s.Identity.Subject + "> "
	default:
		return "splitwiser> "
	}
}

func runShellCommand(ctx context.Context, a *app, out io.Writer, args []string) error {
	usage := func(u string) error {
		fmt.Fprintln(out, "Usage:", u)
		return nil
	}

	switch args[0] {
	case "help":
		fmt.Fprintln(out, shellHelp)
	case "register", "login":
		if len(args) != 3 {
			return usage(args[0] + " EMAIL PASSWORD")
		}
		if args[0] == "register" {
			return a.do(ctx, orchestrator.Register{Username: args[1], Password: args[2]})
		}
		return a.do(ctx, orchestrator.Login{Username: args[1], Password: args[2]})
	case "logout":
		return a.do(ctx, orchestrator.Logout{})
	case "whoami":
		s, err := a.state(ctx)
		if err != nil {
			return err
		}
		printIdentity(out, s)
	case "groups":
		if err := a.do(ctx, orchestrator.RefreshGroups{}); err != nil {
			return err
		}
		s, err := a.state(ctx)
		if err != nil {
			return err
		}
		printGroups(out, s.Groups)
	case "member":
		if len(args) < 3 || (args[1] != "add" && args[1] != "rm") {
			return usage("member add|rm NAME")
		}
		name := strings.Join(args[2:], " ")
		if args[1] == "add" {
			return a.do(ctx, orchestrator.AddMember{Name: name})
		}
		return a.do(ctx, orchestrator.RemoveMember{Name: name})
	case "members":
		s, err := a.state(ctx)
		if err != nil {
			return err
		}
		if len(s.Members) == 0 {
			fmt.Fprintln(out, "No members added.")
		} else {
			fmt.Fprintln(out, strings.Join(s.Members, ", "))
		}
	case "create":
		if len(args) < 2 {
			return usage("create NAME")
		}
		return a.do(ctx, orchestrator.CreateGroup{Name: strings.Join(args[1:], " ")})
	case "open":
		if len(args) != 2 {
			return usage("open GROUP_ID")
		}
		d, err := openGroup(ctx, a, args[1])
		if err != nil {
			return err
		}
		printDetail(out, d)
	case "back":
		return a.do(ctx, orchestrator.Back{})
	case "payer":
		if len(args) < 2 {
			return usage("payer NAME")
		}
		return a.do(ctx, orchestrator.SelectPayer{Name: strings.Join(args[1:], " ")})
	case "include", "exclude":
		if len(args) < 2 {
			return usage(args[0] + " NAME")
		}
		return a.do(ctx, orchestrator.SetParticipant{Name: strings.Join(args[1:], " "), Checked: args[0] == "include"})
	case "form":
		s, err := a.state(ctx)
		if err != nil {
			return err
		}
		if s.Detail == nil {
			fmt.Fprintln(out, "Open a group first.")
			return nil
		}
		printForm(out, s.Detail)
	case "expense":
		if len(args) < 3 {
			return usage("expense AMOUNT DESCRIPTION")
		}
		return submitFromForm(ctx, a, out, args[1], strings.Join(args[2:], " "))
	default:
		fmt.Fprintln(out, "Unknown command. Type 'help' for a list of commands.")
	}
	return nil
}

// submitFromForm submits an expense using the payer and participants
// currently selected in the open group.
func submitFromForm(ctx context.Context, a *app, out io.Writer, amount, description string) error {
	s, err := a.state(ctx)
	if err != nil {
		return err
	}
	if s.Detail == nil {
		fmt.Fprintln(out, "Open a group first.")
		return nil
	}
	if err := a.do(ctx, orchestrator.AddExpense{Description: description, Amount: amount}); err != nil {
		return err
	}

	s, err = a.state(ctx)
	if err != nil {
		return err
	}
	if s.Detail != nil {
		printExpenses(out, s.Detail.Expenses)
	}
	return nil
}
