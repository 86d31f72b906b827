package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/fluxo-dev/fluxo/internal/commands"
)

func main() {
	// A .env in the working directory applies before the workspace's own.
	_ = godotenv.Load()

	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
