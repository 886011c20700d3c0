package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitwiser-client/internal/auth"
	"github.com/mmynk/splitwiser-client/internal/devserver"
	"github.com/mmynk/splitwiser-client/internal/storage"
	"github.com/mmynk/splitwiser-client/internal/storage/sqlite"
)

func init() {
	rootCmd.AddCommand(devserverCmd)
	devserverCmd.Flags().String("addr", "", "listen address (overrides config)")
	devserverCmd.Flags().String("db", "", "persist data to this SQLite file instead of memory")
}

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local Splitwiser API for development",
	Long: `Run an implementation of the Splitwiser REST API on this machine.
Data is kept in memory unless --db (or [devserver] db_path) is set.`,
	Args: cobra.NoArgs,
	RunE: runDevServer,
}

func runDevServer(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.DevServer.Addr
	}
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = cfg.DevServer.DBPath
	}

	var backend storage.Store = storage.NewMemory()
	if dbPath != "" {
		db, err := sqlite.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open dev server store: %w", err)
		}
		backend = db
		slog.Info("Storage initialized", "database", dbPath)
	}
	defer backend.Close()

	store := devserver.NewStore(backend)
	jwtManager := auth.NewJWTManager(cfg.DevServer.Secret, cfg.TokenTTL())
	srv := devserver.New(store, auth.NewPasswordAuthenticator(store, 0), jwtManager, slog.Default())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Dev server starting", "address", addr, "url", "http://"+addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dev server failed: %w", err)
		}
		return nil
	case <-cmd.Context().Done():
	}

	slog.Info("Dev server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
