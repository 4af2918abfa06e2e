// Package authctl implements the operator command-line tool for the session
// token engine: logging in, revoking sessions, seeding accounts and running
// store maintenance by hand.
package authctl

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/newsplatform/sessiond/internal/logging"
	"github.com/newsplatform/sessiond/internal/server/config"
	"github.com/newsplatform/sessiond/internal/server/password"
	"github.com/newsplatform/sessiond/internal/server/repositories/repomanager"
	"github.com/newsplatform/sessiond/internal/server/services"
)

type App struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	auth    *services.AuthService
	tokens  *services.TokenService
	cleanup *services.CleanupService
	reader  *bufio.Reader
	out     io.Writer
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	cleanup := services.NewCleanupService(db, rm, cfg, logger)
	tokens := services.NewTokenService(db, rm, cleanup, nil, cfg, logger)
	auth := services.NewAuthService(db, rm, tokens, password.NewBcryptVerifier(), logger)

	return &App{
		db:      db,
		repos:   rm,
		auth:    auth,
		tokens:  tokens,
		cleanup: cleanup,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

// Run dispatches a single subcommand and returns its exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	defer a.db.Close()

	if len(args) == 0 {
		a.usage()
		return 2
	}

	var err error
	switch args[0] {
	case "login":
		err = a.Login(ctx)
	case "validate":
		err = a.Validate(ctx, args[1:])
	case "revoke":
		err = a.Revoke(ctx, args[1:])
	case "sweep":
		err = a.Sweep(ctx)
	case "reconcile":
		err = a.Reconcile(ctx)
	case "adduser":
		err = a.AddUser(ctx, args[1:])
	default:
		a.usage()
		return 2
	}

	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return 1
	}
	return 0
}

func (a *App) usage() {
	fmt.Fprintln(a.out, `usage: authctl <command> [args]

commands:
  login                       authenticate and print a fresh token pair
  validate <access-token>     check an access token against the store
  revoke <user-id>            revoke every token of the user
  sweep                       delete token rows past the retention window
  reconcile                   collapse duplicate token rows
  adduser <username> <email> <role>   create an account (prompts for password)`)
}
