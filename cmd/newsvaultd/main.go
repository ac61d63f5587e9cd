package main

import (
	"os"

	"github.com/veridian-labs/newsvault/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
