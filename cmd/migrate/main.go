// migrate применяет и откатывает встроенные SQL-миграции PostgreSQL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vladislavdragonenkov/orderpay/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "ORDERPAY_POSTGRES_DSN"
)

var errDSNRequired = errors.New(envPostgresDSN + " (or -dsn) is required")

type direction string

const (
	directionUp     direction = "up"
	directionDown   direction = "down"
	directionStatus direction = "status"
)

type options struct {
	direction direction
	steps     int
	dsn       string
}

// schemaStore описывает методы postgres.Store, которые нужны команде.
type schemaStore interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (postgres.MigrationState, error)
	Close() error
}

var openStore = func(ctx context.Context, dsn string) (schemaStore, error) {
	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func parseOptions(args []string, lookup func(string) (string, bool)) (options, error) {
	var (
		opts options
		dir  string
	)
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&dir, "direction", string(directionUp), "up, down or status")
	fs.IntVar(&opts.steps, "steps", 0, "migrations to apply (up: 0 means all) or roll back (down: at least 1)")
	fs.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (default $"+envPostgresDSN+")")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.direction = direction(strings.ToLower(strings.TrimSpace(dir)))
	switch opts.direction {
	case directionUp, directionStatus:
	case directionDown:
		opts.steps = max(opts.steps, 1)
	default:
		return options{}, fmt.Errorf("unsupported direction: %s (use up|down|status)", opts.direction)
	}

	if opts.dsn = strings.TrimSpace(opts.dsn); opts.dsn == "" {
		env, _ := lookup(envPostgresDSN)
		opts.dsn = strings.TrimSpace(env)
	}
	if opts.dsn == "" {
		return options{}, errDSNRequired
	}
	return opts, nil
}

// run выполняет миграцию и печатает итоговое состояние схемы в out.
func run(ctx context.Context, opts options, out io.Writer) error {
	store, err := openStore(ctx, opts.dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	switch opts.direction {
	case directionUp:
		err = store.MigrateUp(ctx, opts.steps)
	case directionDown:
		err = store.MigrateDown(ctx, opts.steps)
	}
	if err != nil {
		return fmt.Errorf("migrate %s failed: %w", opts.direction, err)
	}

	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, _ = fmt.Fprintf(out, "migrate %s ok: version=%d applied=%d pending=%d\n", opts.direction, state.Version, state.Applied, state.Pending)
	return nil
}

func main() {
	_ = godotenv.Load()

	opts, err := parseOptions(os.Args[1:], os.LookupEnv)
	if err != nil {
		fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fail("%v", err)
	}
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
