// Package main is the tidemark pipeline orchestrator CLI.
package main

import (
	"os"

	"github.com/tidemark-data/tidemark/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
