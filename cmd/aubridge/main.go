// Package main implements the aubridge command-line tool: a host harness
// for the agent execution bridge and the mixdown exporter.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "aubridge: %v\n", err)
		os.Exit(1)
	}
}
