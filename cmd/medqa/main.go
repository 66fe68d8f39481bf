// Command medqa is the entry point for the medical question-answering
// pipeline. It provides a CLI interface (via Cobra) for ingesting medical
// reference corpora into a vector index, asking grounded questions, and
// running the HTTP query server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/medkb/medqa-go/cmd/medqa/commands"
)

func main() {
	// Load .env if present; real environment variables win.
	_ = godotenv.Load()

	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
