package main

import (
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"

	"github.com/trainsplorer/railcore/internal/dbutil"
	"github.com/trainsplorer/railcore/internal/railmetrics"
	"github.com/trainsplorer/railcore/internal/trainengine"
)

func newServeTrainCommand() *cobra.Command {
	var listen, dbPath, scheduleURL, referenceURL string
	var maxOpenConns int

	cmd := &cobra.Command{
		Use:   "serve-train",
		Short: "Run the Running-Train Engine service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initLogging("trainengine"); err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := dbutil.Open(ctx, dbutil.Config{Path: dbPath, MaxOpenConns: maxOpenConns})
			if err != nil {
				return errors.Trace(err)
			}
			dbutil.CloseOnDone(ctx, db)

			engine := trainengine.New(db,
				trainengine.NewHTTPScheduleClient(scheduleURL),
				trainengine.NewHTTPReferenceClient(referenceURL))
			if err := engine.Init(ctx); err != nil {
				return errors.Trace(err)
			}

			router := newServiceRouter("trainengine", railmetrics.New("trainengine"))
			trainengine.Routes(router, engine)
			return runServer(ctx, "trainengine", listen, router)
		},
	}
	bindFlag(cmd, &listen, "listen", "RAILCORE_TRAIN_LISTEN", ":8082", "listen address")
	bindFlag(cmd, &dbPath, "db", "RAILCORE_TRAIN_DB", "trainengine.db", "sqlite database path")
	bindIntFlag(cmd, &maxOpenConns, "workers", "RAILCORE_TRAIN_WORKERS", 4, "max open database connections (reader pool size)")
	bindFlag(cmd, &scheduleURL, "upstream-schedule", "RAILCORE_TRAIN_UPSTREAM_SCHEDULE", "http://127.0.0.1:8081", "Schedule Store base URL")
	bindFlag(cmd, &referenceURL, "upstream-reference", "RAILCORE_TRAIN_UPSTREAM_REFERENCE", "http://127.0.0.1:8084", "Reference Resolver base URL")
	return cmd
}
