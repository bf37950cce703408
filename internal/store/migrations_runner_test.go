package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type execCall struct {
	sql  string
	args []any
}

type mockPool struct {
	t       *testing.T
	applied map[string]bool
	execs   []execCall
}

type mockRow struct {
	value bool
}

func (r mockRow) Scan(dest ...any) error {
	if len(dest) == 1 {
		if b, ok := dest[0].(*bool); ok {
			*b = r.value
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (p *mockPool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execs = append(p.execs, execCall{sql: sql, args: args})
	if regexp.MustCompile(`INSERT INTO schema_migrations`).MatchString(sql) && len(args) == 1 {
		p.applied[args[0].(string)] = true
	}
	return pgconn.CommandTag{}, nil
}

func (p *mockPool) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if len(args) != 1 {
		p.t.Fatalf("unexpected QueryRow args: %v", args)
	}
	return mockRow{value: p.applied[args[0].(string)]}
}

func execsMatching(execs []execCall, pattern string) int {
	re := regexp.MustCompile(pattern)
	n := 0
	for _, e := range execs {
		if re.MatchString(e.sql) {
			n++
		}
	}
	return n
}

func TestApplyMigrationsEmptyDatabase(t *testing.T) {
	pool := &mockPool{t: t, applied: map[string]bool{}}

	if err := ApplyMigrations(context.Background(), pool); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}

	if n := execsMatching(pool.execs, `CREATE TABLE IF NOT EXISTS schema_migrations`); n != 1 {
		t.Errorf("expected 1 schema_migrations bootstrap, got %d", n)
	}
	if n := execsMatching(pool.execs, `CREATE TABLE users`); n != 1 {
		t.Errorf("expected 001_init.sql to run once, got %d", n)
	}
	if !pool.applied["001_init.sql"] {
		t.Error("001_init.sql was not recorded as applied")
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	pool := &mockPool{t: t, applied: map[string]bool{}}

	if err := ApplyMigrations(context.Background(), pool); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before := len(pool.execs)

	if err := ApplyMigrations(context.Background(), pool); err != nil {
		t.Fatalf("second run: %v", err)
	}

	// Second run bootstraps the tracking table again but applies nothing.
	if n := execsMatching(pool.execs[before:], `CREATE TABLE users`); n != 0 {
		t.Errorf("migration reapplied on second run")
	}
	if n := execsMatching(pool.execs[before:], `INSERT INTO schema_migrations`); n != 0 {
		t.Errorf("migration re-recorded on second run")
	}
}
