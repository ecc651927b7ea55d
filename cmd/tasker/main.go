// ABOUTME: Main CLI application for the tasker workflow engine
// ABOUTME: Entry point for the Cobra-based command-line interface

package main

import (
	"os"

	"github.com/bastelbude1/tasker/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
