// Command sense-demo runs configured sources through the notification
// engine and lets you attach listeners to them from an interactive console.
//
// Sources are idle until something listens. Subscribing from the console
// starts the producer; removing the last listener stops it again. Engine
// events go to the configured log backend and, with --trace, to a trace
// file readable with sense-log.
//
// Usage:
//
//	sense-demo [flags]
//
// Examples:
//
//	# Interactive console with the built-in one second clock
//	sense-demo
//
//	# Load sources from a file and record a trace
//	sense-demo --config demo.yaml --trace demo.slog
//
//	# Headless: print every reading until SIGINT or SIGTERM
//	sense-demo --config demo.yaml --no-console --log-backend zerolog
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
