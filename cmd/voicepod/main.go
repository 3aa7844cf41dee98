// Package main is the entry point for the voicepod device runtime.
//
// Usage:
//
//	voicepod [flags] <command>
//
// Commands:
//
//	run      - Run the device core against the configured transport
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/voicepod/cmd/voicepod/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
