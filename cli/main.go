package main

import (
	"os"

	"github.com/phoenixfitness/phoenix-stack/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
