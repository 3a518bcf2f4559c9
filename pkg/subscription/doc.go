// Package subscription implements buffered, multi-listener value streams
// with replay and backpressure.
//
// A Subscription delivers published values to any number of listeners. Each
// listener runs in its own goroutine and consumes from its own bounded
// buffer, so a slow listener never delays the others (except under the Block
// overflow policy, where it delays publishers).
//
// # Policy
//
// Each subscription has:
//   - Replay: how many of the most recent values a new listener receives first
//   - Capacity: extra buffer space per listener beyond the replayed values
//   - Overflow: what happens when a listener's buffer is full
//
// The default policy (Replay 0, Capacity 1, DropOldest) keeps only the
// freshest undelivered value for a busy listener.
//
// # Overflow Behavior
//
//   - DropOldest: the oldest buffered value is discarded to make room
//   - DropLatest: the new value is discarded for that listener
//   - Block: the publisher waits until the listener has room
//
// # Lifecycle
//
// The first listener activates the subscription (OnActivated runs before
// the listener's goroutine begins consuming). Removing the last listener
// deactivates it. Registration and activation happen under one lock, so
// concurrent first subscribers trigger exactly one activation.
//
// # Transforms
//
// Listeners may be registered with element-wise transforms (map, filter,
// validation). A transform that fails, by error or panic, ends only that
// listener: it is removed, the failure is reported, and the remaining
// listeners continue. A listener that panics is reported and keeps
// receiving.
package subscription
