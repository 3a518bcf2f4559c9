package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"
)

// defaultReadTimeout bounds the read command.
const defaultReadTimeout = 10 * time.Second

// Console is the interactive command interface of sense-demo.
type Console struct {
	rt  *Runtime
	out io.Writer
	rl  *readline.Instance
}

// NewConsole creates a console over rt. Output goes to out; rl may be nil
// when commands are fed through Exec.
func NewConsole(rt *Runtime, out io.Writer, rl *readline.Instance) *Console {
	return &Console{rt: rt, out: out, rl: rl}
}

// newReadline creates the line editor used by Run.
func newReadline() (*readline.Instance, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sense> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("help"),
			readline.PcItem("list"),
			readline.PcItem("sub"),
			readline.PcItem("unsub"),
			readline.PcItem("read"),
			readline.PcItem("publish"),
			readline.PcItem("status"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return rl, nil
}

// Run starts the interactive command loop. It returns when the user quits,
// input ends, or ctx is cancelled.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if !c.Exec(ctx, line) {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Exec runs one command line. It returns false when the console should exit.
func (c *Console) Exec(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "list", "ls", "l":
		c.cmdList()
	case "sub", "s":
		c.cmdSub(args)
	case "unsub", "u":
		c.cmdUnsub(args)
	case "read", "r":
		c.cmdRead(ctx, args)
	case "publish", "pub", "p":
		c.cmdPublish(args)
	case "status", "st":
		c.cmdStatus()
	case "quit", "exit", "q":
		return false
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Sense Demo Commands:
  Sources:
    list                     - List sources and their listeners
    status                   - Show activation state and delivery counters

  Listeners:
    sub <source> [match]     - Print readings (only those containing match)
    unsub <id>|all           - Remove a listener
    read <source> [timeout]  - Wait for the next reading (default 10s)
    publish <source> <text>  - Inject a manual reading

  General:
    help                     - Show this help
    quit                     - Exit`)
}

func (c *Console) cmdList() {
	listeners := c.rt.Listeners()
	for _, st := range c.rt.Status() {
		fmt.Fprintf(c.out, "  %-12s %-10s %-6s", st.Name, st.Kind, st.State)
		if ids := listeners[st.Name]; len(ids) > 0 {
			fmt.Fprintf(c.out, " listeners %v", ids)
		}
		fmt.Fprintln(c.out)
	}
}

func (c *Console) cmdStatus() {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tSTATE\tPRODUCING\tQUALITY\tPOLICY\tLISTENERS\tPUBLISHED\tDROPPED\tFAILED")
	for _, st := range c.rt.Status() {
		policy := fmt.Sprintf("replay=%d cap=%d %s", st.Policy.Replay, st.Policy.Capacity, st.Policy.Overflow)
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\t%d\t%d\t%d\t%d\n",
			st.Name, st.State, st.Producing, st.Quality, policy,
			st.Stats.Listeners, st.Stats.Published, st.Stats.Dropped, st.Stats.Failed)
	}
	tw.Flush()
}

func (c *Console) cmdSub(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: sub <source> [match]")
		return
	}
	filter := strings.Join(args[1:], " ")
	id, err := c.rt.Subscribe(args[0], filter)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Listener %d on %s\n", id, args[0])
}

func (c *Console) cmdUnsub(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: unsub <id>|all")
		return
	}
	if args[0] == "all" {
		fmt.Fprintf(c.out, "Removed %d listeners\n", c.rt.UnsubscribeAll())
		return
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid listener ID: %s\n", args[0])
		return
	}
	if err := c.rt.Unsubscribe(id); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Listener %d removed\n", id)
}

func (c *Console) cmdRead(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: read <source> [timeout]")
		return
	}
	timeout := defaultReadTimeout
	if len(args) > 1 {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			fmt.Fprintf(c.out, "Invalid timeout: %v\n", err)
			return
		}
		timeout = d
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	r, err := c.rt.Read(ctx, args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, r)
}

func (c *Console) cmdPublish(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: publish <source> <text>")
		return
	}
	accepted, err := c.rt.Publish(args[0], strings.Join(args[1:], " "))
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if !accepted {
		fmt.Fprintln(c.out, "Published (rejected by at least one full listener)")
		return
	}
	fmt.Fprintln(c.out, "Published")
}
