package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
)

// DefaultDir is the on-disk copy of the embedded migrations, used by
// storectl when creating or validating files.
const DefaultDir = "pkg/migrate/migrations"

// Runner applies the storefront schema through a goose provider. It never
// closes the *sql.DB it was given.
type Runner struct {
	provider *goose.Provider
}

// NewRunner reads migrations from the embedded set when dir is EmbeddedDir
// and from disk otherwise.
func NewRunner(db *sql.DB, dir string) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	source, err := sourceFS(dir)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, source)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

func sourceFS(dir string) (fs.FS, error) {
	switch dir {
	case "":
		return nil, errors.New("dir is required")
	case EmbeddedDir:
		return fs.Sub(Migrations, EmbeddedDir)
	default:
		return os.DirFS(dir), nil
	}
}

func (r *Runner) Up(ctx context.Context) ([]*goose.MigrationResult, error) {
	return r.provider.Up(ctx)
}

// Down rolls back only the newest applied migration.
func (r *Runner) Down(ctx context.Context) (*goose.MigrationResult, error) {
	return r.provider.Down(ctx)
}

func (r *Runner) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	return r.provider.Status(ctx)
}

// To moves the schema up or down until target is the newest applied version.
func (r *Runner) To(ctx context.Context, target int64) ([]*goose.MigrationResult, error) {
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("current version: %w", err)
	}
	switch {
	case current == target:
		return nil, nil
	case current < target:
		return r.provider.UpTo(ctx, target)
	default:
		return r.provider.DownTo(ctx, target)
	}
}

// Run executes one storectl migrate command and reports each applied
// migration to out. Supported commands: up, down, status, version <v>.
func Run(ctx context.Context, db *sql.DB, dir string, out io.Writer, command string, args ...string) error {
	if out == nil {
		out = io.Discard
	}
	runner, err := NewRunner(db, dir)
	if err != nil {
		return err
	}

	var results []*goose.MigrationResult
	switch command {
	case "up":
		results, err = runner.Up(ctx)
	case "down":
		var res *goose.MigrationResult
		if res, err = runner.Down(ctx); res != nil {
			results = append(results, res)
		}
	case "status":
		return printStatus(ctx, runner, out)
	case "version":
		if len(args) != 1 {
			return errors.New("version requires exactly one YYYYMMDDHHMMSS argument")
		}
		target, parseErr := strconv.ParseInt(args[0], 10, 64)
		if parseErr != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], parseErr)
		}
		results, err = runner.To(ctx, target)
	default:
		return fmt.Errorf("unsupported migrate command %q", command)
	}

	for _, res := range results {
		fmt.Fprintf(out, "%-4s %s (%s)\n", res.Direction, res.Source.Path, res.Duration.Round(time.Millisecond))
	}
	if err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "schema already at the requested version")
	}
	return nil
}

func printStatus(ctx context.Context, runner *Runner, out io.Writer) error {
	statuses, err := runner.Status(ctx)
	if err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	for _, st := range statuses {
		applied := "pending"
		if st.State == goose.StateApplied {
			applied = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(out, "%-19s %s\n", applied, st.Source.Path)
	}
	return nil
}
