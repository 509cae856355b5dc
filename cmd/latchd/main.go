// Package main is the entry point for the latchd door controller.
package main

import (
	"os"

	"github.com/latchlab/latchd/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
