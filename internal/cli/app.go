package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/splitwiser-client/internal/api"
	"github.com/mmynk/splitwiser-client/internal/config"
	"github.com/mmynk/splitwiser-client/internal/members"
	"github.com/mmynk/splitwiser-client/internal/notify"
	"github.com/mmynk/splitwiser-client/internal/orchestrator"
	"github.com/mmynk/splitwiser-client/internal/session"
	"github.com/mmynk/splitwiser-client/internal/storage/sqlite"
	"github.com/mmynk/splitwiser-client/pkg/logging"
)

// app is one running client: the session file, the gateway, and the
// orchestrator loop driving them.
type app struct {
	store    *sqlite.SQLiteStore
	session  *session.Store
	client   *api.Client
	notifier *notify.Channel
	orch     *orchestrator.Orchestrator
	logger   *slog.Logger

	cancel  context.CancelFunc
	done    chan struct{}
	metrics *http.Server
}

// newApp opens the session store and starts the orchestrator. Notifications
// are written to out as they appear.
func newApp(ctx context.Context, cfg config.Config, out io.Writer, opts ...orchestrator.Option) (*app, error) {
	logger := slog.Default()

	store, err := sqlite.New(cfg.Session.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	sess := session.New(store, logger)

	client, err := api.New(cfg.API.URL, sess,
		api.WithLogger(logger),
		api.WithTimeout(cfg.APITimeout()),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	notifyLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if logging.ParseLevel(cfg.Log.Level) == slog.LevelDebug {
		notifyLogger = logger
	}
	notifier := notify.New(cfg.NotifyTTL(),
		notify.WithLogger(notifyLogger),
		notify.WithListener(func(n notify.Notification, visible bool) {
			if visible {
				printNotification(out, n)
			}
		}),
	)

	a := &app{
		store:    store,
		session:  sess,
		client:   client,
		notifier: notifier,
		orch:     orchestrator.New(sess, client, notifier, members.NewBuilder(cfg.Groups.MinMembers), logger, opts...),
		logger:   logger,
		done:     make(chan struct{}),
	}

	if cfg.Metrics.Addr != "" {
		a.metrics = serveMetrics(cfg.Metrics.Addr, logger)
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go func() {
		defer close(a.done)
		if err := a.orch.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Orchestrator stopped", "error", err)
		}
	}()

	// A failed initial refresh has already been notified; commands that
	// need the list refresh it themselves.
	select {
	case <-a.orch.Ready():
	case <-ctx.Done():
	}
	return a, nil
}

// do runs one action to completion.
func (a *app) do(ctx context.Context, action orchestrator.Action) error {
	return a.orch.Do(ctx, action)
}

func (a *app) state(ctx context.Context) (orchestrator.State, error) {
	return a.orch.State(ctx)
}

func (a *app) Close() {
	a.cancel()
	<-a.done
	a.notifier.Close()
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close session store", "error", err)
	}
}

func serveMetrics(addr string, logger *slog.Logger) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("Serving metrics", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()
	return srv
}

func printNotification(out io.Writer, n notify.Notification) {
	mark := "✓"
	if n.Kind == notify.KindError {
		mark = "✗"
	}
	fmt.Fprintf(out, "%s %s\n", mark, n.Message)
}
