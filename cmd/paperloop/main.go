package main

import (
	"os"

	"github.com/peter-kozarec/paperloop/cmd/paperloop/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
