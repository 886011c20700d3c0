package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitwiser-client/internal/detail"
	"github.com/mmynk/splitwiser-client/internal/orchestrator"
)

func init() {
	rootCmd.AddCommand(groupsCmd, expensesCmd)
	groupsCmd.AddCommand(groupsListCmd, groupsCreateCmd, groupsShowCmd)
	expensesCmd.AddCommand(expensesListCmd, expensesAddCmd)

	groupsCreateCmd.Flags().StringArrayP("member", "m", nil, "member name (repeat for each member)")

	expensesAddCmd.Flags().StringP("description", "d", "", "what the money was spent on")
	expensesAddCmd.Flags().StringP("amount", "a", "", "total amount, e.g. 40.00")
	expensesAddCmd.Flags().String("payer", "", "member who paid")
	expensesAddCmd.Flags().StringArray("participant", nil, "member sharing the cost (repeat; default all members)")
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Manage groups",
}

var groupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your groups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			if err := a.do(cmd.Context(), orchestrator.RefreshGroups{}); err != nil {
				return err
			}
			s, err := a.state(cmd.Context())
			if err != nil {
				return err
			}
			printGroups(cmd.OutOrStdout(), s.Groups)
			return nil
		})
	},
}

var groupsCreateCmd = &cobra.Command{
	Use:   "create NAME --member NAME...",
	Short: "Create a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		names, _ := cmd.Flags().GetStringArray("member")
		return withApp(cmd, func(a *app) error {
			ctx := cmd.Context()
			for _, name := range names {
				if err := a.do(ctx, orchestrator.AddMember{Name: name}); err != nil {
					return err
				}
			}
			if err := a.do(ctx, orchestrator.CreateGroup{Name: args[0]}); err != nil {
				return err
			}
			s, err := a.state(ctx)
			if err != nil {
				return err
			}
			printGroups(cmd.OutOrStdout(), s.Groups)
			return nil
		})
	},
}

var groupsShowCmd = &cobra.Command{
	Use:   "show GROUP_ID",
	Short: "Show a group and its expenses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			d, err := openGroup(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			printDetail(cmd.OutOrStdout(), d)
			return nil
		})
	},
}

var expensesCmd = &cobra.Command{
	Use:   "expenses",
	Short: "List and add expenses",
}

var expensesListCmd = &cobra.Command{
	Use:   "list GROUP_ID",
	Short: "List a group's expenses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			d, err := openGroup(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			printExpenses(cmd.OutOrStdout(), d.Expenses)
			return nil
		})
	},
}

var expensesAddCmd = &cobra.Command{
	Use:   "add GROUP_ID",
	Short: "Add an expense to a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		amount, _ := cmd.Flags().GetString("amount")
		payer, _ := cmd.Flags().GetString("payer")
		participants, _ := cmd.Flags().GetStringArray("participant")

		return withApp(cmd, func(a *app) error {
			ctx := cmd.Context()
			d, err := openGroup(ctx, a, args[0])
			if err != nil {
				return err
			}
			if len(participants) == 0 {
				for _, p := range d.Participants {
					participants = append(participants, p.Name)
				}
			}

			form := detail.ExpenseForm{
				Description:  description,
				Amount:       amount,
				Payer:        payer,
				Participants: participants,
			}
			if err := a.do(ctx, orchestrator.SubmitExpense{Form: form}); err != nil {
				return err
			}

			s, err := a.state(ctx)
			if err != nil {
				return err
			}
			if s.Detail != nil {
				printExpenses(cmd.OutOrStdout(), s.Detail.Expenses)
			}
			return nil
		})
	},
}

// openGroup moves the client into the group's detail view.
func openGroup(ctx context.Context, a *app, groupID string) (*orchestrator.DetailState, error) {
	if err := a.do(ctx, orchestrator.Open{GroupID: groupID}); err != nil {
		return nil, err
	}
	s, err := a.state(ctx)
	if err != nil {
		return nil, err
	}
	if s.Detail == nil {
		return nil, fmt.Errorf("group %s is not open", groupID)
	}
	return s.Detail, nil
}
