package main

import (
	"os"

	"github.com/indexlab/backend/cmd/indexd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
