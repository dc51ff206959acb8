// Package app initializes and runs the signup server.
// It configures logging, metrics, the session store, the user service client
// and routing, and handles graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/signup/internal/auth"
	"github.com/patric-chuzhbe/signup/internal/config"
	"github.com/patric-chuzhbe/signup/internal/db/memorystorage"
	"github.com/patric-chuzhbe/signup/internal/db/redisstorage"
	"github.com/patric-chuzhbe/signup/internal/ipchecker"
	"github.com/patric-chuzhbe/signup/internal/logger"
	"github.com/patric-chuzhbe/signup/internal/metrics"
	"github.com/patric-chuzhbe/signup/internal/notify"
	"github.com/patric-chuzhbe/signup/internal/router"
	"github.com/patric-chuzhbe/signup/internal/service"
	"github.com/patric-chuzhbe/signup/internal/session"
	"github.com/patric-chuzhbe/signup/internal/sweeper"
	"github.com/patric-chuzhbe/signup/internal/userapi"
	"github.com/patric-chuzhbe/signup/internal/validation"
	"github.com/patric-chuzhbe/signup/internal/view"
)

const sweeperErrorsCapacity = 16

type storage interface {
	session.Store
	Ping(ctx context.Context) error
	Close() error
}

// App holds the configuration, the HTTP handler, the session store
// and the background sweeper of the signup server.
type App struct {
	cfg         *config.Config
	store       storage
	stopSweeper context.CancelFunc
	httpHandler http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger and metrics
// - selecting the session store
// - setting up the flows, the renderer and the router
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	metrics.Init()

	app.store, app.stopSweeper, err = newStore(app.cfg)
	if err != nil {
		return nil, err
	}

	signingKey, err := app.cfg.SigningKey()
	if err != nil {
		return nil, err
	}

	fieldValidator, err := validation.New()
	if err != nil {
		return nil, err
	}

	renderer, err := view.New()
	if err != nil {
		return nil, err
	}

	metricsGuard, err := ipchecker.New(app.cfg.MetricsTrustedSubnets...)
	if err != nil {
		return nil, err
	}

	notifier := notify.New(app.cfg.ToastDuration)

	app.httpHandler = router.New(
		service.New(
			userapi.New(app.cfg.UserServiceURL, app.cfg.UpstreamTimeout),
			fieldValidator,
			notifier,
			service.WithRollbackOnUpdateFailure(app.cfg.RollbackOnUpdateFailure),
		),
		app.store,
		renderer,
		notifier,
		auth.New(app.cfg.SessionCookieName, signingKey, app.cfg.SessionTTL),
		router.WithNavigateDelay(app.cfg.NavigateDelay),
		router.WithCORSAllowedOrigins(app.cfg.CORSAllowedOrigins),
		router.WithGzip(app.cfg.EnableGzip),
		router.WithMetricsGuard(metricsGuard),
	)

	return app, nil
}

// newStore picks Redis when an address is configured. The in-memory store is
// swept of expired sessions in the background.
func newStore(cfg *config.Config) (storage, context.CancelFunc, error) {
	if cfg.RedisAddr != "" {
		store, err := redisstorage.New(
			context.Background(),
			cfg.RedisAddr,
			cfg.SessionTTL,
			cfg.RedisConnectionTimeout,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("in internal/app/app.go/newStore(): error while `redisstorage.New()` calling: %w", err)
		}
		logger.Log.Infoln("session store", "type", "redis", "addr", cfg.RedisAddr)
		return store, func() {}, nil
	}

	store := memorystorage.New(cfg.SessionTTL)

	theSweeper := sweeper.New(store, cfg.SessionSweepInterval, sweeperErrorsCapacity)
	sweeperCtx, stopSweeper := context.WithCancel(context.Background())
	theSweeper.ListenErrors(func(err error) {
		logger.Log.Debugln("Error passed from the `theSweeper.ListenErrors()`:", zap.Error(err))
	})
	theSweeper.Run(sweeperCtx)

	logger.Log.Infoln("session store", "type", "memory")
	return store, stopSweeper, nil
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr, "UserServiceURL", a.cfg.UserServiceURL)

	return a.serve(ctx, &http.Server{
		Addr:              a.cfg.RunAddr,
		Handler:           a.httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	})
}

// serve runs server until ctx is done or the server fails. The sweeper and the
// session store are released on both paths.
func (a *App) serve(ctx context.Context, server httpServer) error {
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Closing the session store and exiting...")
		a.stopSweeper()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var shutdownErr error
		if err := server.Shutdown(shutdownCtx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		return errors.Join(shutdownErr, a.store.Close())

	case err := <-serverErrCh:
		a.stopSweeper()
		return errors.Join(fmt.Errorf("server error: %w", err), a.store.Close())
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}
