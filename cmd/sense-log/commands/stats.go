package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/sense-engine/sense-go/pkg/log"
)

// Stats holds aggregate statistics about a trace file.
type Stats struct {
	TotalEvents      int
	EventsByKind     map[log.Kind]int
	EventsByCategory map[log.Category]int
	FaultsByPhase    map[log.Phase]int
	Sources          map[string]*SourceStats
	Dropped          int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// SourceStats holds statistics for a single topic, sensor or subscription.
type SourceStats struct {
	Name          string
	Kind          log.Kind
	FirstSeen     time.Time
	LastSeen      time.Time
	Events        int
	Activations   int
	Deactivations int
	Faults        int
	Dropped       int
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file.slog>",
		Short: "Show statistics about the trace file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunStats(args[0], cmd.OutOrStdout())
		},
	}
}

// CollectStats reads every event from r.
func CollectStats(r *log.Reader) (*Stats, error) {
	stats := &Stats{
		EventsByKind:     make(map[log.Kind]int),
		EventsByCategory: make(map[log.Category]int),
		FaultsByPhase:    make(map[log.Phase]int),
		Sources:          make(map[string]*SourceStats),
	}

	for {
		event, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByKind[event.Kind]++
		stats.EventsByCategory[event.Category]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		src, ok := stats.Sources[event.SourceID]
		if !ok {
			src = &SourceStats{
				Kind:      event.Kind,
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
			}
			stats.Sources[event.SourceID] = src
		}
		src.Events++
		if event.Timestamp.After(src.LastSeen) {
			src.LastSeen = event.Timestamp
		}
		if src.Name == "" {
			src.Name = event.SourceName
		}

		switch {
		case event.Lifecycle != nil && event.Lifecycle.Error == "":
			if event.Lifecycle.NewState == "ACTIVE" {
				src.Activations++
			} else {
				src.Deactivations++
			}
		case event.Delivery != nil:
			src.Dropped += event.Delivery.Dropped
			stats.Dropped += event.Delivery.Dropped
		case event.Fault != nil:
			src.Faults++
			stats.FaultsByPhase[event.Fault.Phase]++
		}
	}
	return stats, nil
}

// RunStats analyzes the trace file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	stats, err := CollectStats(reader)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Engine Trace Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Kind:")
	for _, k := range []log.Kind{log.KindTopic, log.KindValue, log.KindSubscription, log.KindSensor} {
		if count := stats.EventsByKind[k]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", k.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, c := range []log.Category{log.CategoryLifecycle, log.CategoryMembership, log.CategoryDelivery, log.CategoryFault} {
		if count := stats.EventsByCategory[c]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", c.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Sources: %d\n", len(stats.Sources))
	if len(stats.Sources) > 0 {
		type sourceInfo struct {
			id    string
			stats *SourceStats
		}
		sources := make([]sourceInfo, 0, len(stats.Sources))
		for id, s := range stats.Sources {
			sources = append(sources, sourceInfo{id, s})
		}
		sort.Slice(sources, func(i, j int) bool {
			if sources[i].stats.FirstSeen.Equal(sources[j].stats.FirstSeen) {
				return sources[i].id < sources[j].id
			}
			return sources[i].stats.FirstSeen.Before(sources[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, s := range sources {
			fmt.Fprintf(w, "  [%s] %s", shortenID(s.id), s.stats.Kind)
			if s.stats.Name != "" {
				fmt.Fprintf(w, " %q", s.stats.Name)
			}
			fmt.Fprintf(w, ": %d events, %d activations, %d deactivations\n",
				s.stats.Events, s.stats.Activations, s.stats.Deactivations)
			if s.stats.Faults > 0 {
				fmt.Fprintf(w, "           Faults: %d\n", s.stats.Faults)
			}
			if s.stats.Dropped > 0 {
				fmt.Fprintf(w, "           Dropped: %d\n", s.stats.Dropped)
			}
		}
	}

	if len(stats.FaultsByPhase) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Faults by Phase:")
		for _, p := range []log.Phase{log.PhaseCallback, log.PhaseListener, log.PhaseTransform, log.PhaseActivate, log.PhaseDeactivate} {
			if count := stats.FaultsByPhase[p]; count > 0 {
				fmt.Fprintf(w, "  %-14s %d\n", p.String()+":", count)
			}
		}
	}

	if stats.Dropped > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Dropped Values: %d\n", stats.Dropped)
	}
}
