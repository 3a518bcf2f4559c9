// Package config loads the YAML configuration of the demo runtime: logging,
// the dispatch worker, named subscription policies and the sources to build.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sense-engine/sense-go/pkg/executor"
	"github.com/sense-engine/sense-go/pkg/log"
	"github.com/sense-engine/sense-go/pkg/subscription"
)

// Configuration errors.
var (
	ErrInvalidConfig = errors.New("invalid config")
)

// SourceKind selects a producer from package source.
type SourceKind string

const (
	SourceInterval  SourceKind = "interval"
	SourceFileWatch SourceKind = "filewatch"
	SourceSignals   SourceKind = "signals"
)

// Log backends and formats.
const (
	BackendSlog    = "slog"
	BackendZerolog = "zerolog"

	FormatText = "text"
	FormatJSON = "json"
)

// Config is the root configuration.
type Config struct {
	Log           LogConfig                      `yaml:"log"`
	Executor      ExecutorConfig                 `yaml:"executor"`
	Subscriptions map[string]subscription.Policy `yaml:"subscriptions"`
	Sources       []SourceConfig                 `yaml:"sources"`
}

// LogConfig configures operational logging and the engine trace.
type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Backend   string `yaml:"backend"`
	TracePath string `yaml:"trace_path"`

	// TraceCategories limits the engine events sent to the log backend, for
	// example [fault, lifecycle]. Empty means all. The trace file always
	// records everything.
	TraceCategories []string `yaml:"trace_categories"`
}

// Categories parses TraceCategories.
func (c LogConfig) Categories() ([]log.Category, error) {
	cats := make([]log.Category, 0, len(c.TraceCategories))
	for _, name := range c.TraceCategories {
		cat, ok := log.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("unknown trace category %q", name)
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

// ExecutorConfig configures the dispatch worker.
type ExecutorConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// SourceConfig describes one producer.
type SourceConfig struct {
	Name     string        `yaml:"name"`
	Kind     SourceKind    `yaml:"kind"`
	Interval time.Duration `yaml:"interval"`
	Paths    []string      `yaml:"paths"`
	Signals  []string      `yaml:"signals"`

	// Subscription names the policy used when the source is fanned out
	// through a subscription. Empty means the default policy.
	Subscription string `yaml:"subscription"`
}

// Default returns the configuration used when no file is given: a one
// second interval source named "clock".
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:   "info",
			Format:  FormatText,
			Backend: BackendSlog,
		},
		Executor: ExecutorConfig{QueueSize: executor.DefaultQueueSize},
		Subscriptions: map[string]subscription.Policy{
			"default": subscription.DefaultPolicy(),
		},
		Sources: []SourceConfig{
			{Name: "clock", Kind: SourceInterval, Interval: time.Second},
		},
	}
}

// policyDoc lets a policy entry omit fields; missing ones take the defaults.
type policyDoc struct {
	Replay   *int                   `yaml:"replay"`
	Capacity *int                   `yaml:"capacity"`
	Overflow *subscription.Overflow `yaml:"overflow"`
}

func (d policyDoc) policy() subscription.Policy {
	p := subscription.DefaultPolicy()
	if d.Replay != nil {
		p.Replay = *d.Replay
	}
	if d.Capacity != nil {
		p.Capacity = *d.Capacity
	}
	if d.Overflow != nil {
		p.Overflow = *d.Overflow
	}
	return p
}

type document struct {
	Log           *LogConfig           `yaml:"log"`
	Executor      *ExecutorConfig      `yaml:"executor"`
	Subscriptions map[string]policyDoc `yaml:"subscriptions"`
	Sources       []SourceConfig       `yaml:"sources"`
}

// Parse decodes YAML on top of Default and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	doc := document{Log: &cfg.Log, Executor: &cfg.Executor}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	for name, p := range doc.Subscriptions {
		cfg.Subscriptions[name] = p.policy()
	}
	if doc.Sources != nil {
		cfg.Sources = doc.Sources
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		addf("log.level: %v", err)
	}
	switch c.Log.Format {
	case FormatText, FormatJSON:
	default:
		addf("log.format: unknown format %q", c.Log.Format)
	}
	switch c.Log.Backend {
	case BackendSlog, BackendZerolog:
	default:
		addf("log.backend: unknown backend %q", c.Log.Backend)
	}
	if _, err := c.Log.Categories(); err != nil {
		addf("log.trace_categories: %v", err)
	}
	if c.Executor.QueueSize < 1 {
		addf("executor.queue_size: must be positive, got %d", c.Executor.QueueSize)
	}
	for name, p := range c.Subscriptions {
		if err := p.Validate(); err != nil {
			addf("subscriptions.%s: %v", name, err)
		}
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		where := fmt.Sprintf("sources[%d]", i)
		if s.Name == "" {
			addf("%s: missing name", where)
		} else if seen[s.Name] {
			addf("%s: duplicate name %q", where, s.Name)
		}
		seen[s.Name] = true

		switch s.Kind {
		case SourceInterval:
			if s.Interval < 0 {
				addf("%s: negative interval", where)
			}
		case SourceFileWatch:
			if len(s.Paths) == 0 {
				addf("%s: filewatch needs paths", where)
			}
		case SourceSignals:
			if _, err := ParseSignals(s.Signals); err != nil {
				addf("%s: %v", where, err)
			}
		default:
			addf("%s: unknown kind %q", where, s.Kind)
		}

		if s.Subscription != "" {
			if _, ok := c.Subscriptions[s.Subscription]; !ok {
				addf("%s: unknown subscription policy %q", where, s.Subscription)
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Policy returns the named subscription policy, or the default policy for
// an empty or unknown name.
func (c *Config) Policy(name string) subscription.Policy {
	if p, ok := c.Subscriptions[name]; ok {
		return p
	}
	return subscription.DefaultPolicy()
}

var signalNames = map[string]os.Signal{
	"INT":  os.Interrupt,
	"TERM": syscall.SIGTERM,
	"HUP":  syscall.SIGHUP,
}

// ParseSignals maps names like "SIGINT" or "term" to signals.
func ParseSignals(names []string) ([]os.Signal, error) {
	out := make([]os.Signal, 0, len(names))
	for _, n := range names {
		key := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(n)), "SIG")
		sig, ok := signalNames[key]
		if !ok {
			return nil, fmt.Errorf("unknown signal %q", n)
		}
		out = append(out, sig)
	}
	return out, nil
}
