// Command git-tide is a git-subcommand alias for tide: placing it on PATH
// lets `git tide ...` invoke the same command tree as `tide ...`.
package main

import (
	"os"

	"tidemark/internal/cliapp"
)

func main() {
	os.Exit(cliapp.Execute())
}
