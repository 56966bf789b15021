// Package main provides the entry point for the searchcv CLI.
package main

import (
	"os"

	"github.com/YuminosukeSato/searchcv/cmd/searchcv/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
