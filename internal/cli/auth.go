package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mmynk/splitwiser-client/internal/orchestrator"
)

func init() {
	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd)

	for _, cmd := range []*cobra.Command{registerCmd, loginCmd} {
		cmd.Flags().StringP("password", "p", "", "password (prompted when omitted)")
	}
}

var registerCmd = &cobra.Command{
	Use:   "register EMAIL",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFlag(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, func(a *app) error {
			return a.do(cmd.Context(), orchestrator.Register{Username: args[0], Password: password})
		})
	},
}

var loginCmd = &cobra.Command{
	Use:   "login EMAIL",
	Short: "Log in and keep the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFlag(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, func(a *app) error {
			return a.do(cmd.Context(), orchestrator.Login{Username: args[0], Password: password})
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			return a.do(cmd.Context(), orchestrator.Logout{})
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			s, err := a.state(cmd.Context())
			if err != nil {
				return err
			}
			printIdentity(cmd.OutOrStdout(), s)
			return nil
		})
	},
}

// withApp starts a client for the duration of fn. One-shot commands skip
// the initial group refresh and fetch only what they use.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := newApp(cmd.Context(), cfg, cmd.OutOrStdout(), orchestrator.WithoutInitialRefresh())
	if err != nil {
		return err
	}
	defer a.Close()
	return quiet(fn(a))
}

func printIdentity(out io.Writer, s orchestrator.State) {
	if !s.LoggedIn {
		fmt.Fprintln(out, "Not logged in.")
		return
	}
	fmt.Fprintf(out, "Logged in as %s\n", s.Identity.Subject)
	if !s.Identity.ExpiresAt.IsZero() {
		fmt.Fprintf(out, "Session token expires %s\n", s.Identity.ExpiresAt.Local().Format(time.RFC1123))
	}
}

// passwordFlag returns --password, or prompts for it. Input is not echoed
// when stdin is a terminal.
func passwordFlag(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password != "" {
		return password, nil
	}
	fmt.Fprint(cmd.OutOrStdout(), "Password: ")

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
