package commands

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sense-engine/sense-go/pkg/log"
)

func newExportCommand() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "export [flags] <file.slog>",
		Short: "Export trace file to JSON Lines or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			return RunExport(args[0], format, w)
		},
	}

	cmd.Flags().StringVar(&format, "format", "jsonl", "Output format (jsonl, csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

// RunExport exports the trace file to the specified format.
func RunExport(path, format string, w io.Writer) error {
	var export func(*log.Reader, io.Writer) error
	switch format {
	case "jsonl":
		export = exportJSONL
	case "csv":
		export = exportCSV
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	return export(reader, w)
}

// jsonEvent is the JSON Lines shape of an event, with enum names instead
// of numbers.
type jsonEvent struct {
	Timestamp  string `json:"timestamp"`
	SourceID   string `json:"source_id"`
	SourceName string `json:"source_name,omitempty"`
	Kind       string `json:"kind"`
	Category   string `json:"category"`

	Lifecycle  *jsonLifecycle  `json:"lifecycle,omitempty"`
	Membership *jsonMembership `json:"membership,omitempty"`
	Delivery   *jsonDelivery   `json:"delivery,omitempty"`
	Fault      *jsonFault      `json:"fault,omitempty"`
}

type jsonLifecycle struct {
	OldState string `json:"old_state"`
	NewState string `json:"new_state"`
	Error    string `json:"error,omitempty"`
}

type jsonMembership struct {
	Action string `json:"action"`
	Handle uint64 `json:"handle,omitempty"`
	Count  int    `json:"count"`
}

type jsonDelivery struct {
	Recipients int `json:"recipients"`
	Removed    int `json:"removed"`
	Dropped    int `json:"dropped"`
}

type jsonFault struct {
	Phase   string `json:"phase"`
	Handle  uint64 `json:"handle,omitempty"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

func toJSON(e log.Event) jsonEvent {
	out := jsonEvent{
		Timestamp:  timestamp(e.Timestamp),
		SourceID:   e.SourceID,
		SourceName: e.SourceName,
		Kind:       e.Kind.String(),
		Category:   e.Category.String(),
	}
	if lc := e.Lifecycle; lc != nil {
		out.Lifecycle = &jsonLifecycle{OldState: lc.OldState, NewState: lc.NewState, Error: lc.Error}
	}
	if d := e.Delivery; d != nil {
		out.Delivery = &jsonDelivery{Recipients: d.Recipients, Removed: d.Removed, Dropped: d.Dropped}
	}
	if m := e.Membership; m != nil {
		out.Membership = &jsonMembership{Action: m.Action.String(), Handle: m.Handle, Count: m.Count}
	}
	if f := e.Fault; f != nil {
		out.Fault = &jsonFault{Phase: f.Phase.String(), Handle: f.Handle, Message: f.Message, Stack: f.Stack}
	}
	return out
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(toJSON(event)); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"timestamp", "source_id", "source_name", "kind", "category", "type", "handle", "detail"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		handle := ""
		detail := ""
		switch {
		case event.Lifecycle != nil:
			detail = event.Lifecycle.Error
		case event.Membership != nil:
			handle = formatHandle(event.Membership.Handle)
			detail = "count=" + strconv.Itoa(event.Membership.Count)
		case event.Delivery != nil:
			d := event.Delivery
			detail = fmt.Sprintf("recipients=%d removed=%d dropped=%d", d.Recipients, d.Removed, d.Dropped)
		case event.Fault != nil:
			handle = formatHandle(event.Fault.Handle)
			detail = event.Fault.Message
		}

		row := []string{
			timestamp(event.Timestamp),
			event.SourceID,
			event.SourceName,
			event.Kind.String(),
			event.Category.String(),
			eventLabel(event),
			handle,
			detail,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatHandle(h uint64) string {
	if h == 0 {
		return ""
	}
	return strconv.FormatUint(h, 10)
}
