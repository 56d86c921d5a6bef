package main

import (
	"github.com/spf13/cobra"
)

var (
	logLevel string
	logFile  string
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "railcore",
		Short:         "Real-time UK rail schedule, movement, and reference services",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warning, error")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "log file path; empty logs to stderr")

	root.AddCommand(newServeScheduleCommand())
	root.AddCommand(newServeTrainCommand())
	root.AddCommand(newServeQueryCommand())
	root.AddCommand(newServeRefCommand())
	return root
}
