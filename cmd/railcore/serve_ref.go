package main

import (
	"context"
	"time"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trainsplorer/railcore/internal/dbutil"
	"github.com/trainsplorer/railcore/internal/railmetrics"
	"github.com/trainsplorer/railcore/internal/refresolver"
)

func newServeRefCommand() *cobra.Command {
	var listen, dbPath string
	var maxOpenConns int
	var refreshInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve-ref",
		Short: "Run the Reference Resolver service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initLogging("refresolver"); err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := dbutil.Open(ctx, dbutil.Config{Path: dbPath, MaxOpenConns: maxOpenConns})
			if err != nil {
				return errors.Trace(err)
			}
			dbutil.CloseOnDone(ctx, db)

			store := refresolver.New(db)
			if err := store.Init(ctx); err != nil {
				return errors.Trace(err)
			}
			if err := store.Refresh(ctx); err != nil {
				return errors.Trace(err)
			}

			router := newServiceRouter("refresolver", railmetrics.New("refresolver"))
			refresolver.Routes(router, store)
			return runServer(ctx, "refresolver", listen, router, refreshWorker(store, refreshInterval))
		},
	}
	bindFlag(cmd, &listen, "listen", "RAILCORE_REF_LISTEN", ":8084", "listen address")
	bindFlag(cmd, &dbPath, "db", "RAILCORE_REF_DB", "refresolver.db", "sqlite database path")
	bindIntFlag(cmd, &maxOpenConns, "workers", "RAILCORE_REF_WORKERS", 4, "max open database connections (reader pool size)")
	bindDurationFlag(cmd, &refreshInterval, "refresh-interval", "RAILCORE_REF_REFRESH_INTERVAL", 5*time.Minute, "interval on which the in-memory reference cache is reloaded from the durable store")
	return cmd
}

// refreshWorker reloads the in-memory reference cache on a timer.
// Startup population happens synchronously before the router is
// mounted; this ticks thereafter until ctx is cancelled.
func refreshWorker(store *refresolver.Store, interval time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := store.Refresh(ctx); err != nil {
					log.Warn("periodic reference cache refresh failed", zap.Error(err))
				}
			}
		}
	}
}
