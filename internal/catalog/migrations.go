package catalog

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// schemaStep is one numbered migration file, e.g. 0002_runs.sql.
type schemaStep struct {
	number int
	name   string
	sql    string
}

// schemaSteps returns the embedded migrations ordered by their numeric prefix.
func schemaSteps(fsys fs.FS) ([]schemaStep, error) {
	names, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	steps := make([]schemaStep, 0, len(names))
	seen := make(map[int]string, len(names))
	for _, name := range names {
		base := strings.TrimSuffix(name[len("migrations/"):], ".sql")
		prefix, _, _ := strings.Cut(base, "_")
		number, err := strconv.Atoi(prefix)
		if err != nil || number <= 0 {
			return nil, fmt.Errorf("migration %s: name must start with a positive number", base)
		}
		if other, dup := seen[number]; dup {
			return nil, fmt.Errorf("migrations %s and %s share number %d", other, base, number)
		}
		seen[number] = base
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", base, err)
		}
		steps = append(steps, schemaStep{number: number, name: base, sql: string(data)})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].number < steps[j].number })
	return steps, nil
}

// migrate brings the schema up to the newest step. The applied step number is
// kept in the database header (PRAGMA user_version), so there is no
// bookkeeping table.
func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	steps, err := schemaSteps(fsys)
	if err != nil {
		return err
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if len(steps) > 0 && current > steps[len(steps)-1].number {
		return fmt.Errorf("catalog schema version %d is newer than this build supports (%d)", current, steps[len(steps)-1].number)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	applied := current
	for _, step := range steps {
		if step.number <= current {
			continue
		}
		if _, err := tx.ExecContext(ctx, step.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", step.name, err)
		}
		applied = step.number
	}
	if applied == current {
		return nil
	}
	// PRAGMA does not take bind parameters; applied is a parsed integer.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", applied)); err != nil {
		return fmt.Errorf("record schema version %d: %w", applied, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// SchemaVersion reports the migration step the catalog is at.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
