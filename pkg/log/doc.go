// Package log provides structured engine tracing for sense-go.
//
// This package defines the Logger interface and Event types for capturing
// what topics, subscriptions and sensors do: lifecycle transitions, membership
// changes, notable deliveries and faults. It is separate from operational
// logging (slog) - the trace is a complete machine-readable record for
// debugging and analysis.
//
// # Basic Usage
//
// Engine primitives accept a Logger through their options:
//
//	// For development: log to console via slog
//	t := topic.New(topic.WithLogger(log.NewSlogAdapter(slog.Default())))
//
//	// For production: write to binary file
//	fl, _ := log.NewFileLogger("/var/log/sense/engine.slog")
//
//	// Both: use MultiLogger
//	logger := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
// Every event carries the emitting source's ID, name and kind, plus one
// payload:
//   - Lifecycle: IDLE/ACTIVE transitions and hook failures (LifecycleEvent)
//   - Membership: subscribe, unsubscribe, replace, expire (MembershipEvent)
//   - Delivery: publishes that removed subscribers or dropped values (DeliveryEvent)
//   - Fault: panics and errors raised by callbacks (FaultEvent)
//
// # File Format
//
// Trace files use CBOR encoding with the .slog extension. The sense-log CLI
// tool provides viewing, filtering, and export capabilities.
package log
