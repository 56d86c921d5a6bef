package main

import (
	"github.com/spf13/cobra"

	"github.com/trainsplorer/railcore/internal/queryfusion"
	"github.com/trainsplorer/railcore/internal/railmetrics"
)

func newServeQueryCommand() *cobra.Command {
	var listen, scheduleURL, trainURL, referenceURL string

	cmd := &cobra.Command{
		Use:   "serve-query",
		Short: "Run the Query Fusion service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initLogging("queryfusion"); err != nil {
				return err
			}
			ctx := cmd.Context()

			fusion := queryfusion.New(
				queryfusion.NewHTTPScheduleClient(scheduleURL),
				queryfusion.NewHTTPTrainClient(trainURL),
				queryfusion.NewHTTPReferenceClient(referenceURL))

			router := newServiceRouter("queryfusion", railmetrics.New("queryfusion"))
			queryfusion.Routes(router, fusion)
			return runServer(ctx, "queryfusion", listen, router)
		},
	}
	bindFlag(cmd, &listen, "listen", "RAILCORE_QUERY_LISTEN", ":8083", "listen address")
	bindFlag(cmd, &scheduleURL, "upstream-schedule", "RAILCORE_QUERY_UPSTREAM_SCHEDULE", "http://127.0.0.1:8081", "Schedule Store base URL")
	bindFlag(cmd, &trainURL, "upstream-train", "RAILCORE_QUERY_UPSTREAM_TRAIN", "http://127.0.0.1:8082", "Running-Train Engine base URL")
	bindFlag(cmd, &referenceURL, "upstream-reference", "RAILCORE_QUERY_UPSTREAM_REFERENCE", "http://127.0.0.1:8084", "Reference Resolver base URL")
	return cmd
}
