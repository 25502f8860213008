// Package db provides database utilities and connection handling for the
// college predictor.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq" // PostgreSQL driver; pq.QuoteIdentifier used for schema DDL

	"github.com/onnwee/collegepredictor/internal/college"
)

// ErrMissingURL is returned when no database URL is configured.
var ErrMissingURL = errors.New("database url is required")

// Options configures the connection pool.
type Options struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open creates a PostgreSQL connection pool and verifies it with a ping.
// The caller owns the returned pool and must Close it.
func Open(ctx context.Context, opts Options) (*sql.DB, error) {
	if opts.URL == "" {
		return nil, ErrMissingURL
	}

	db, err := sql.Open("postgres", opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// PhaseTableDDL returns the CREATE TABLE statement for one counselling phase.
// Every category gets a nullable INTEGER closing-rank column; NULL means the
// branch was not offered to that category in the phase.
func PhaseTableDDL(p college.Partition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", pq.QuoteIdentifier(p.Table()))
	b.WriteString("\tid BIGSERIAL PRIMARY KEY,\n")
	b.WriteString("\tinstitute_name TEXT NOT NULL,\n")
	b.WriteString("\tplace TEXT,\n")
	b.WriteString("\tdist_code TEXT,\n")
	b.WriteString("\tcollege_type TEXT,\n")
	b.WriteString("\tbranch_name TEXT NOT NULL,\n")
	b.WriteString("\ttuition_fee BIGINT")
	for _, c := range college.Categories() {
		fmt.Fprintf(&b, ",\n\t%s INTEGER", pq.QuoteIdentifier(c.Column()))
	}
	b.WriteString("\n)")
	return b.String()
}

// EnsureSchema creates the phase tables and their branch index if missing.
// It is used to bootstrap local and test databases; the API never calls it.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, p := range college.Partitions() {
		if _, err := db.ExecContext(ctx, PhaseTableDDL(p)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", p.Table(), err)
		}
		index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (branch_name)",
			pq.QuoteIdentifier(p.Table()+"_branch_name_idx"), pq.QuoteIdentifier(p.Table()))
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", p.Table(), err)
		}
	}
	return nil
}
