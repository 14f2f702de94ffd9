// Package main is the entry point for the leadhunter CLI.
package main

import (
	"os"

	"github.com/jmylchreest/leadhunter/cmd/leadhunter/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
