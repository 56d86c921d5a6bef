package main

import (
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"

	"github.com/trainsplorer/railcore/internal/dbutil"
	"github.com/trainsplorer/railcore/internal/railmetrics"
	"github.com/trainsplorer/railcore/internal/schedulestore"
)

func newServeScheduleCommand() *cobra.Command {
	var listen, dbPath string
	var maxOpenConns int

	cmd := &cobra.Command{
		Use:   "serve-schedule",
		Short: "Run the Schedule Store service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initLogging("schedulestore"); err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := dbutil.Open(ctx, dbutil.Config{Path: dbPath, MaxOpenConns: maxOpenConns})
			if err != nil {
				return errors.Trace(err)
			}
			dbutil.CloseOnDone(ctx, db)

			store := schedulestore.New(db)
			if err := store.Init(ctx); err != nil {
				return errors.Trace(err)
			}

			router := newServiceRouter("schedulestore", railmetrics.New("schedulestore"))
			schedulestore.Routes(router, store)
			return runServer(ctx, "schedulestore", listen, router)
		},
	}
	bindFlag(cmd, &listen, "listen", "RAILCORE_SCHEDULE_LISTEN", ":8081", "listen address")
	bindFlag(cmd, &dbPath, "db", "RAILCORE_SCHEDULE_DB", "schedulestore.db", "sqlite database path")
	bindIntFlag(cmd, &maxOpenConns, "workers", "RAILCORE_SCHEDULE_WORKERS", 4, "max open database connections (reader pool size)")
	return cmd
}
