// Package health provides readiness checks for the predictor's backing services.
package health

import (
	"context"
	"fmt"
)

// Pinger is the part of *sql.DB the database check needs.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// DBChecker reports whether the college dataset database is reachable.
type DBChecker struct {
	db Pinger
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db Pinger) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database through the shared connection pool.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}
