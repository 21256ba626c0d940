// Package server wires configuration, storage, services and transports into
// a runnable application and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/cookieauth/internal/logging"
	"github.com/dmitrijs2005/cookieauth/internal/server/admin"
	"github.com/dmitrijs2005/cookieauth/internal/server/auth"
	"github.com/dmitrijs2005/cookieauth/internal/server/config"
	"github.com/dmitrijs2005/cookieauth/internal/server/httpapi"
	"github.com/dmitrijs2005/cookieauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cookieauth/internal/server/services"
	"github.com/gin-gonic/gin"

	gs "github.com/dmitrijs2005/cookieauth/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	userService *services.UserService
	issuer      *auth.Issuer
	cookies     *auth.CookieTransport
	stdin       io.Reader
	stdout      io.Writer
}

// NewApp opens the database and builds the services described by c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogFormat, os.Stdout)
	if err != nil {
		return nil, err
	}

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	return newApp(c, logger, db, repomanager.NewPostgresRepositoryManager()), nil
}

func newApp(c *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager) *App {
	gin.SetMode(c.GinMode)
	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		repomanager: rm,
		userService: services.NewUserService(db, rm, c),
		issuer:      auth.NewIssuer(c.SecretKey, c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration),
		cookies:     auth.NewCookieTransport(c),
		stdin:       os.Stdin,
		stdout:      os.Stdout,
	}
}

// Close releases the database handle.
func (app *App) Close() error {
	if app.db == nil {
		return nil
	}
	return app.db.Close()
}

// Migrate applies pending schema migrations.
func (app *App) Migrate(ctx context.Context) error {
	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	app.logger.Info(ctx, "Migrations applied")
	return nil
}

// CreateUser runs the interactive create-user command.
func (app *App) CreateUser(ctx context.Context, email string) error {
	if err := app.Migrate(ctx); err != nil {
		return err
	}
	_, err := admin.CreateUser(ctx, app.userService, email, app.stdin, app.stdout)
	return err
}

// initSignalHandler cancels on SIGINT, SIGTERM or SIGQUIT. The handler
// unregisters itself once a signal arrives or ctx is done; the returned
// channel is closed at that point.
func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) <-chan struct{} {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer signal.Stop(sigs)

		select {
		case sig := <-sigs:
			app.logger.Info(ctx, "Received signal", "signal", sig.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
	return done
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := httpapi.NewHandler(app.userService, app.issuer, app.cookies, app.logger)
	router := httpapi.NewRouter(h, app.config.AllowedOrigins())
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, router, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run migrates the schema and serves HTTP (and gRPC health when configured)
// until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.Migrate(ctx); err != nil {
		return err
	}

	sigDone := app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.EndpointAddrGRPC != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()
	cancelFunc()
	<-sigDone

	app.logger.Info(context.Background(), "App stopped")
	return nil
}
