// Package main is the alchemy command line.
package main

import (
	"os"

	"github.com/leapstack-labs/alchemy/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
