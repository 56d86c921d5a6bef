// Command railcore hosts the four railcore services (Schedule Store,
// Running-Train Engine, Query Fusion, and Reference Resolver) as
// subcommands of one binary, so they can be deployed independently or
// run side by side in one process during development.
package main

import "os"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
