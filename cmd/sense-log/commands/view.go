package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sense-engine/sense-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	SourceID string
	Kind     *log.Kind
	Category *log.Category

	// Stack prints fault stacks in full.
	Stack bool
}

func (f ViewFilter) matches(e log.Event) bool {
	lf := log.Filter{SourceID: f.SourceID, Kind: f.Kind, Category: f.Category}
	return lf.Matches(e)
}

func newViewCommand() *cobra.Command {
	var filter ViewFilter
	var kind, category string

	cmd := &cobra.Command{
		Use:   "view [flags] <file.slog>",
		Short: "View trace file in human-readable format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if kind != "" {
				k, err := ParseKindFlag(kind)
				if err != nil {
					return err
				}
				filter.Kind = &k
			}
			if category != "" {
				c, err := ParseCategoryFlag(category)
				if err != nil {
					return err
				}
				filter.Category = &c
			}
			return RunView(args[0], filter, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&filter.SourceID, "source-id", "", "Filter by source ID")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind (topic, value, subscription, sensor)")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category (lifecycle, membership, delivery, fault)")
	cmd.Flags().BoolVar(&filter.Stack, "stack", false, "Print fault stacks")

	return cmd
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event, stack bool) {
	// Header line: timestamp [src:id] KIND CATEGORY "name"
	fmt.Fprintf(w, "%s [src:%s] %s %s", timestamp(event.Timestamp), shortenID(event.SourceID), event.Kind, event.Category)
	if event.SourceName != "" {
		fmt.Fprintf(w, " %q", event.SourceName)
	}
	fmt.Fprintln(w)

	switch {
	case event.Lifecycle != nil:
		lc := event.Lifecycle
		fmt.Fprintf(w, "  %s -> %s\n", lc.OldState, lc.NewState)
		if lc.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", lc.Error)
		}
	case event.Membership != nil:
		m := event.Membership
		fmt.Fprintf(w, "  Action: %s", m.Action)
		if m.Handle != 0 {
			fmt.Fprintf(w, "  Handle: %d", m.Handle)
		}
		fmt.Fprintf(w, "  Count: %d\n", m.Count)
	case event.Delivery != nil:
		d := event.Delivery
		fmt.Fprintf(w, "  Recipients: %d  Removed: %d  Dropped: %d\n", d.Recipients, d.Removed, d.Dropped)
	case event.Fault != nil:
		f := event.Fault
		fmt.Fprintf(w, "  Phase: %s", f.Phase)
		if f.Handle != 0 {
			fmt.Fprintf(w, "  Handle: %d", f.Handle)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Message: %s\n", f.Message)
		if f.Stack != "" {
			if stack {
				fmt.Fprintln(w, "  Stack:")
				fmt.Fprintln(w, indent(f.Stack, "    "))
			} else {
				fmt.Fprintf(w, "  Stack: %d bytes\n", len(f.Stack))
			}
		}
	}

	fmt.Fprintln(w) // Blank line between events
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if !filter.matches(event) {
			continue
		}
		formatEvent(output, event, filter.Stack)
	}

	return nil
}
