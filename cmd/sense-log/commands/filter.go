package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sense-engine/sense-go/pkg/log"
)

// FilterOptions specifies filtering criteria for the filter command.
type FilterOptions struct {
	Output     string
	SourceID   string
	SourceName string
	TimeStart  string
	TimeEnd    string
	Kind       string
	Category   string
}

func newFilterCommand() *cobra.Command {
	var opts FilterOptions

	cmd := &cobra.Command{
		Use:   "filter [flags] <file.slog>",
		Short: "Filter trace file and write to new file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunFilter(args[0], opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output file (required)")
	_ = cmd.MarkFlagRequired("output")
	cmd.Flags().StringVar(&opts.SourceID, "source-id", "", "Filter by source ID")
	cmd.Flags().StringVar(&opts.SourceName, "source-name", "", "Filter by source name")
	cmd.Flags().StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	cmd.Flags().StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "Filter by kind (topic, value, subscription, sensor)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "Filter by category (lifecycle, membership, delivery, fault)")

	return cmd
}

// BuildFilter converts the options to a log.Filter.
func (opts FilterOptions) BuildFilter() (log.Filter, error) {
	filter := log.Filter{
		SourceID:   opts.SourceID,
		SourceName: opts.SourceName,
	}

	var err error
	if filter.TimeStart, err = parseTimeFlag("time-start", opts.TimeStart); err != nil {
		return log.Filter{}, err
	}
	if filter.TimeEnd, err = parseTimeFlag("time-end", opts.TimeEnd); err != nil {
		return log.Filter{}, err
	}

	if opts.Kind != "" {
		k, err := ParseKindFlag(opts.Kind)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Kind = &k
	}
	if opts.Category != "" {
		c, err := ParseCategoryFlag(opts.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}
	return filter, nil
}

// RunFilter filters the trace file and writes matching events to a new
// file. A summary line is written to w.
func RunFilter(path string, opts FilterOptions, w io.Writer) error {
	if opts.Output == "" {
		return errors.New("output file required")
	}
	filter, err := opts.BuildFilter()
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(opts.Output)
	if err != nil {
		return fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		logger.Log(event)
	}

	fmt.Fprintf(w, "Filtered %d events to %s\n", logger.Written(), opts.Output)
	return nil
}
