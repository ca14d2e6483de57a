package main

import (
	"os"

	"github.com/forcetrace/forcetrace/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
