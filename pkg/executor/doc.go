// Package executor runs callbacks so that a panicking task cannot take down
// the goroutine that submitted it.
//
// # Executors
//
// An Executor accepts a task and runs it somewhere: on the calling goroutine
// (Inline), on a fresh goroutine (Goroutine), or on a single background worker
// with a bounded queue (Worker).
//
// # Isolation
//
// Safe wraps any Executor. Every task it runs is guarded: a panic is recovered,
// converted to a *Fault carrying the panic value and stack, and handed to a
// FaultHandler. The default handler logs the fault through slog and lets the
// caller continue.
//
// Cancellation is not a fault. Tasks that observe a cancelled context and
// return early are indistinguishable from tasks that completed normally.
package executor
