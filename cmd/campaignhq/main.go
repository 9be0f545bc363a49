// Package main is the entry point of the campaignhq CLI.
package main

import (
	"os"

	"github.com/campaignhq/campaignhq/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
