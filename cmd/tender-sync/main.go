package main

import (
	"fmt"
	"os"

	"github.com/galois26/tender-sync/cmd/tender-sync/commands"
)

// Version information, set via -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
