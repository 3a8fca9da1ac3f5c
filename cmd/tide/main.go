// Command tide is the primary TideMark CLI entry point.
package main

import (
	"os"

	"tidemark/internal/cliapp"
)

func main() {
	os.Exit(cliapp.Execute())
}
