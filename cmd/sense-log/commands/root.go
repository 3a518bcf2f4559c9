// Package commands implements the sense-log CLI commands.
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sense-engine/sense-go/pkg/log"
)

// NewRootCommand creates the sense-log root command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sense-log",
		Short: "Engine trace analyzer",
		Long: `sense-log reads the CBOR trace files written by the notification engine
and shows lifecycle transitions, membership changes, lossy deliveries and
faults of every topic, sensor and subscription.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newViewCommand())
	cmd.AddCommand(newExportCommand())
	cmd.AddCommand(newFilterCommand())
	cmd.AddCommand(newStatsCommand())

	return cmd
}

// ParseKindFlag parses a source kind from a command-line flag
// (case-insensitive).
func ParseKindFlag(s string) (log.Kind, error) {
	k, ok := log.ParseKind(s)
	if !ok {
		return 0, fmt.Errorf("invalid kind: %s (must be topic, value, subscription, or sensor)", s)
	}
	return k, nil
}

// ParseCategoryFlag parses a category from a command-line flag
// (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	c, ok := log.ParseCategory(s)
	if !ok {
		return 0, fmt.Errorf("invalid category: %s (must be lifecycle, membership, delivery, or fault)", s)
	}
	return c, nil
}

func parseTimeFlag(name, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s format: %w", name, err)
	}
	return &t, nil
}

// shortenID returns the first 8 characters of a source ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// eventLabel names the payload of an event.
func eventLabel(e log.Event) string {
	switch {
	case e.Lifecycle != nil:
		return e.Lifecycle.OldState + "->" + e.Lifecycle.NewState
	case e.Membership != nil:
		return e.Membership.Action.String()
	case e.Delivery != nil:
		return "DELIVERY"
	case e.Fault != nil:
		return e.Fault.Phase.String()
	default:
		return "UNKNOWN"
	}
}

func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
