package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/sense-engine/sense-go/pkg/config"
	"github.com/sense-engine/sense-go/pkg/source"
)

// shutdownTimeout bounds Runtime.Close on exit.
const shutdownTimeout = 5 * time.Second

// rootOptions holds the command-line flags.
type rootOptions struct {
	ConfigFile string
	TracePath  string
	Backend    string
	LogLevel   string
	LogFormat  string
	NoConsole  bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "sense-demo",
		Short: "Interactive notification engine demo",
		Long: `sense-demo builds the configured sources (timers, file watchers, OS
signals) and fans their readings out through buffered subscriptions.
Producers run only while at least one listener is attached.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts.NoConsole, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&opts.TracePath, "trace", "", "Write engine trace to this file (.slog)")
	cmd.Flags().StringVar(&opts.Backend, "log-backend", config.BackendSlog, "Engine event log backend: slog, zerolog")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&opts.LogFormat, "log-format", config.FormatText, "Log format: text, json")
	cmd.Flags().BoolVar(&opts.NoConsole, "no-console", false, "Print all readings until interrupted instead of starting the console")

	return cmd
}

// load reads the configuration file and applies flags the user set
// explicitly.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if o.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(o.ConfigFile); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("trace") {
		cfg.Log.TracePath = o.TracePath
	}
	if flags.Changed("log-backend") {
		cfg.Log.Backend = o.Backend
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.LogLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = o.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, headless bool, stdout, stderr io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var rl *readline.Instance
	out := stdout
	logOut := stderr
	if !headless {
		var err error
		if rl, err = newReadline(); err != nil {
			return err
		}
		// Route output through readline so it does not clobber the prompt.
		out, logOut = rl.Stdout(), rl.Stderr()
	}

	logger, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return err
	}
	sink, err := newTraceSink(cfg.Log, logger, logOut)
	if err != nil {
		return err
	}
	defer sink.Close()

	rt, err := NewRuntime(cfg, out, logger, sink.logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := rt.Close(sctx); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	logger.Info("sense-demo started", "sources", len(cfg.Sources), "trace", cfg.Log.TracePath)

	if rl != nil {
		go func() {
			waitForSignal(ctx, cancel, logger.Info)
			// Unblock a pending Readline.
			_ = rl.Close()
		}()
		NewConsole(rt, out, rl).Run(ctx, cancel)
		return nil
	}

	for _, name := range rt.Sources() {
		if _, err := rt.Subscribe(name, ""); err != nil {
			return err
		}
	}
	waitForSignal(ctx, cancel, logger.Info)
	return nil
}

// waitForSignal cancels ctx on SIGINT or SIGTERM.
func waitForSignal(ctx context.Context, cancel context.CancelFunc, logf func(string, ...any)) {
	signals := source.NewSignals([]os.Signal{os.Interrupt, syscall.SIGTERM})
	sig, err := signals.Read(ctx, nil)
	if err == nil {
		logf("received signal", "signal", sig.String())
	}
	cancel()
}
