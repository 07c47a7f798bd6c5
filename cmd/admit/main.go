// Package main is the entrypoint for the admit CLI.
package main

import (
	"os"

	"github.com/canonica-labs/admission/internal/cli"
)

// Set via -ldflags "-X main.version=..."
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	os.Exit(cli.New().Execute())
}
