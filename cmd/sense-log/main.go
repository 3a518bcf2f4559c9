// Command sense-log views and analyzes engine trace files.
//
// Trace files are written by sense-demo with the --trace flag, or by any
// program that installs a log.FileLogger on its topics and subscriptions.
//
// Usage:
//
//	sense-log <command> [flags] <file.slog>
//
// Commands:
//
//	view     View trace file in human-readable format
//	export   Export trace file to JSON Lines or CSV
//	filter   Filter trace file and write to new file
//	stats    Show statistics about the trace file
//
// Examples:
//
//	# View all events
//	sense-log view demo.slog
//
//	# View only faults, with stacks
//	sense-log view --category fault --stack demo.slog
//
//	# Export to JSONL
//	sense-log export --format jsonl demo.slog
//
//	# Keep only one subscription's events
//	sense-log filter --source-name readings -o readings.slog demo.slog
//
//	# Show statistics
//	sense-log stats demo.slog
package main

import (
	"fmt"
	"os"

	"github.com/sense-engine/sense-go/cmd/sense-log/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
