package main

import (
	"os"

	"github.com/strixlabs/killwatch/cmd/killwatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
