package main

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// bindFlag registers a string flag on cmd, defaulting to the value of
// envVar when set, falling back to def otherwise. Every bootstrap knob
// is a flag with a RAILCORE_<NAME> environment fallback; there is no
// config file format.
func bindFlag(cmd *cobra.Command, dest *string, name, envVar, def, usage string) {
	if v, ok := os.LookupEnv(envVar); ok {
		def = v
	}
	cmd.Flags().StringVar(dest, name, def, usage)
}

// bindIntFlag is bindFlag for integer-valued flags (e.g. --workers).
func bindIntFlag(cmd *cobra.Command, dest *int, name, envVar string, def int, usage string) {
	if v, ok := os.LookupEnv(envVar); ok {
		if parsed, err := strconv.Atoi(v); err == nil {
			def = parsed
		}
	}
	cmd.Flags().IntVar(dest, name, def, usage)
}

// bindDurationFlag is bindFlag for duration-valued flags (e.g. the
// reference cache's refresh interval).
func bindDurationFlag(cmd *cobra.Command, dest *time.Duration, name, envVar string, def time.Duration, usage string) {
	if v, ok := os.LookupEnv(envVar); ok {
		if parsed, err := time.ParseDuration(v); err == nil {
			def = parsed
		}
	}
	cmd.Flags().DurationVar(dest, name, def, usage)
}
