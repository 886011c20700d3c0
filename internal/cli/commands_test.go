package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/splitwiser-client/internal/auth"
	"github.com/mmynk/splitwiser-client/internal/config"
	"github.com/mmynk/splitwiser-client/internal/devserver"
	"github.com/mmynk/splitwiser-client/internal/storage"
)

// runCommand executes the root command with args against home and returns
// everything written to stdout.
func runCommand(t *testing.T, home, apiURL string, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append([]string{"--home", home, "--api-url", apiURL, "--log-level", "error"}, args...))
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

// resetFlags restores every flag to its default; values otherwise carry
// over between executions of the shared command tree.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func startDevServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := devserver.NewStore(storage.NewMemory())
	srv := devserver.New(store, auth.NewPasswordAuthenticator(store, bcrypt.MinCost), auth.NewJWTManager("cli-secret", time.Hour), nil)
	server := httptest.NewServer(srv.Handler())
	t.Cleanup(server.Close)
	return server
}

func TestCommands_ServerDown(t *testing.T) {
	t.Setenv(config.EnvAPIURL, "")
	home := t.TempDir()
	server := startDevServer(t)

	steps := [][]string{
		{"register", "a@x.com", "-p", "pw"},
		{"login", "a@x.com", "-p", "pw"},
		{"groups", "create", "Trip", "-m", "Alice", "-m", "Bob"},
	}
	for _, args := range steps {
		if out, err := runCommand(t, home, server.URL, args...); err != nil {
			t.Fatalf("%v failed: %v\n%s", args, err, out)
		}
	}
	server.Close()

	t.Run("groups list fails", func(t *testing.T) {
		out, err := runCommand(t, home, server.URL, "groups", "list")
		if err == nil {
			t.Fatalf("expected an error, output:\n%s", out)
		}
		if !errors.Is(err, errReported) {
			t.Errorf("error should be marked as reported: %v", err)
		}
		if !strings.Contains(out, "✗ Could not fetch groups.") {
			t.Errorf("failure not notified:\n%s", out)
		}
		if strings.Contains(out, "No groups yet.") {
			t.Errorf("failed refresh printed as an empty list:\n%s", out)
		}
	})

	t.Run("whoami needs no network", func(t *testing.T) {
		out, err := runCommand(t, home, server.URL, "whoami")
		if err != nil {
			t.Fatalf("whoami failed: %v", err)
		}
		if !strings.Contains(out, "Logged in as a@x.com") {
			t.Errorf("identity missing:\n%s", out)
		}
		if strings.Contains(out, "Could not fetch groups.") {
			t.Errorf("whoami should not fetch groups:\n%s", out)
		}
	})
}

func TestGroupsList(t *testing.T) {
	t.Setenv(config.EnvAPIURL, "")
	home := t.TempDir()
	server := startDevServer(t)

	out, err := runCommand(t, home, server.URL, "groups", "list")
	if err == nil {
		t.Fatalf("logged-out list should fail:\n%s", out)
	}
	if !strings.Contains(out, "✗ Please log in first.") {
		t.Errorf("login prompt missing:\n%s", out)
	}

	for _, args := range [][]string{
		{"register", "a@x.com", "-p", "pw"},
		{"login", "a@x.com", "-p", "pw"},
		{"groups", "create", "Trip", "-m", "Alice", "-m", "Bob"},
	} {
		if out, err := runCommand(t, home, server.URL, args...); err != nil {
			t.Fatalf("%v failed: %v\n%s", args, err, out)
		}
	}

	out, err = runCommand(t, home, server.URL, "groups", "list")
	if err != nil {
		t.Fatalf("groups list failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Trip") || !strings.Contains(out, "Alice, Bob") {
		t.Errorf("group missing from list:\n%s", out)
	}
}

func TestConfigInit(t *testing.T) {
	t.Setenv(config.EnvAPIURL, "")
	home := t.TempDir()
	const apiURL = "http://example.test:9000"

	out, err := runCommand(t, home, apiURL, "config", "init")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, config.Path(home)) {
		t.Errorf("output should name the file:\n%s", out)
	}

	loaded, err := config.Load(home)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.API.URL != apiURL {
		t.Errorf("API.URL = %q, want %q", loaded.API.URL, apiURL)
	}

	if _, err := runCommand(t, home, apiURL, "config", "init"); err == nil {
		t.Error("init over an existing file should fail without --force")
	}
	if _, err := runCommand(t, home, "http://other.test", "config", "init", "--force"); err != nil {
		t.Fatalf("config init --force failed: %v", err)
	}
	data, err := os.ReadFile(config.Path(home))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "http://other.test") {
		t.Errorf("config not overwritten:\n%s", data)
	}
}

func TestPasswordFlag(t *testing.T) {
	newCmd := func(in string) (*cobra.Command, *bytes.Buffer) {
		cmd := &cobra.Command{}
		cmd.Flags().StringP("password", "p", "", "")
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetIn(strings.NewReader(in))
		return cmd, &out
	}

	t.Run("flag", func(t *testing.T) {
		cmd, out := newCmd("")
		_ = cmd.Flags().Set("password", "secret")
		got, err := passwordFlag(cmd)
		if err != nil || got != "secret" {
			t.Fatalf("passwordFlag = %q, %v", got, err)
		}
		if out.Len() != 0 {
			t.Errorf("no prompt expected, got %q", out.String())
		}
	})

	t.Run("piped input", func(t *testing.T) {
		cmd, out := newCmd("secret\r\n")
		got, err := passwordFlag(cmd)
		if err != nil || got != "secret" {
			t.Fatalf("passwordFlag = %q, %v", got, err)
		}
		if out.String() != "Password: " {
			t.Errorf("prompt = %q", out.String())
		}
	})

	t.Run("empty input", func(t *testing.T) {
		cmd, _ := newCmd("")
		if _, err := passwordFlag(cmd); err == nil {
			t.Error("expected an error on empty stdin")
		}
	})
}
