package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

// DialectFor maps the configured database driver to a goose dialect.
func DialectFor(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "postgres":
		return "postgres", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("no goose dialect for driver %q", driver)
	}
}

// Runner applies the migrations in one directory to one database.
type Runner struct {
	db      *sql.DB
	dialect string
	dir     string
}

func NewRunner(db *sql.DB, driver, dir string) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &Runner{db: db, dialect: dialect, dir: dir}, nil
}

func (r *Runner) Dialect() string { return r.dialect }

// goose keeps the dialect in package state, so every call re-selects it.
func (r *Runner) use() error {
	if err := goose.SetDialect(r.dialect); err != nil {
		return fmt.Errorf("set goose dialect %s: %w", r.dialect, err)
	}
	return nil
}

func (r *Runner) Up(ctx context.Context) error {
	if err := r.use(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, r.db, r.dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration only.
func (r *Runner) Down(ctx context.Context) error {
	if err := r.use(); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, r.db, r.dir); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

// Status prints the applied state of every migration to stdout.
func (r *Runner) Status(ctx context.Context) error {
	if err := r.use(); err != nil {
		return err
	}
	if err := goose.StatusContext(ctx, r.db, r.dir); err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	return nil
}

func (r *Runner) Version(ctx context.Context) (int64, error) {
	if err := r.use(); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersionContext(ctx, r.db)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return v, nil
}

// To moves the schema up or down until target is the current version.
func (r *Runner) To(ctx context.Context, target string) error {
	want, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (want %s): %w", target, versionLayout, err)
	}
	have, err := r.Version(ctx)
	if err != nil {
		return err
	}

	switch {
	case have < want:
		err = goose.UpToContext(ctx, r.db, r.dir, want)
	case have > want:
		err = goose.DownToContext(ctx, r.db, r.dir, want)
	}
	if err != nil {
		return fmt.Errorf("goose migrate %d -> %d: %w", have, want, err)
	}
	return nil
}
