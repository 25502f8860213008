// Command predict runs a single college prediction against the counselling
// dataset and prints one table per phase.
//
// Usage:
//
//	predict --rank 5000 --category OC_BOYS --branch "COMPUTER SCIENCE AND ENGINEERING"
//	predict schema
//	predict categories
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/onnwee/collegepredictor/internal/college"
	"github.com/onnwee/collegepredictor/internal/config"
	"github.com/onnwee/collegepredictor/internal/db"
	"github.com/onnwee/collegepredictor/internal/middleware"
)

func main() {
	if err := newRootCmd(postgresBackend()).Execute(); err != nil {
		os.Exit(1)
	}
}

// backend opens the dataset for the commands. Tests swap in an in-memory store.
type backend struct {
	openDB    func(ctx context.Context, cfg *config.Config) (*sql.DB, error)
	openStore func(ctx context.Context, cfg *config.Config) (college.Store, func(), error)
}

func postgresBackend() backend {
	openDB := func(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
		if cfg.DatabaseURL == "" {
			return nil, config.ErrMissingDatabaseURL
		}
		pool, err := db.Open(ctx, db.Options{
			URL:             cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return pool, nil
	}
	return backend{
		openDB: openDB,
		openStore: func(ctx context.Context, cfg *config.Config) (college.Store, func(), error) {
			pool, err := openDB(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			logger := middleware.NewLogger(cfg.Env)
			return college.NewPostgresStore(pool, logger), func() { _ = pool.Close() }, nil
		},
	}
}
