// Package main is the entry point for the subloop CLI.
package main

import (
	"os"

	"github.com/Subloop/Subloop/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
