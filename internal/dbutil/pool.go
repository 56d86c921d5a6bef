// Package dbutil opens and configures the embedded sqlite database each
// service keeps for its own state. Every service owns exactly one such
// database; there is no shared server to connect to.
package dbutil

import (
	"context"
	"database/sql"
	"time"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/trainsplorer/railcore/internal/util"
)

// Config controls how a service's database is opened.
type Config struct {
	// Path is a filesystem path, or ":memory:" for an ephemeral database
	// used by tests.
	Path string

	// MaxOpenConns caps the pool. sqlite allows only one writer at a
	// time regardless of this setting; it mainly bounds concurrent
	// readers. Zero means 1.
	MaxOpenConns int
}

// pragmas are applied to every freshly opened database. WAL lets readers
// proceed while a write transaction is open; foreign_keys enforces the
// references between schedules/movements and trains/movements that each
// service's schema declares.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// Open opens the database at cfg.Path, waiting with exponential backoff
// for it to become pingable (useful when the path sits on a volume that
// mounts slightly after the process starts), then applies pragmas.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, errors.Annotatef(err, "open sqlite %q", cfg.Path)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)

	if err := util.Retry(ctx, func() error {
		return db.PingContext(ctx)
	}, func(err error, wait time.Duration) {
		log.Warn("database not ready, retrying", zap.String("path", cfg.Path), zap.Error(err), zap.Duration("wait", wait))
	}); err != nil {
		db.Close()
		return nil, errors.Annotatef(err, "ping sqlite %q", cfg.Path)
	}

	if err := ApplyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// ApplyPragmas runs the standard pragma set against an already-open
// database. Exported so tests can exercise the failure path against a
// mock driver without opening a real sqlite file.
func ApplyPragmas(ctx context.Context, db *sql.DB) error {
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Annotatef(err, "apply %q", pragma)
		}
	}
	return nil
}

// CloseOnDone closes db once ctx is cancelled, logging any error since
// nothing waits on the returned goroutine.
func CloseOnDone(ctx context.Context, db *sql.DB) {
	go func() {
		<-ctx.Done()
		if err := db.Close(); err != nil {
			log.Warn("error closing database", zap.Error(err))
		}
	}()
}
