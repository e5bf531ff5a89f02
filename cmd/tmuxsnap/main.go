package main

import (
	"os"

	"github.com/tmuxsnap/tmuxsnap/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
