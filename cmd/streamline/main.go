// Package main is the entry point for the streamline application.
package main

import (
	"os"

	"github.com/sanketb-14/Streamline-sub000/cmd/streamline/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
