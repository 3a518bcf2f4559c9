// Package topic implements lazily-activated notification topics.
//
// A Topic fans a zero-payload "something changed" signal out to subscribers.
// Each subscriber is a predicate: returning true keeps it subscribed,
// returning false removes it after the current publish. Value[T] is the
// typed variant that remembers and delivers the latest value.
//
// # Lifecycle
//
// Topics are reference-counted. The first subscriber activates the topic
// (OnActivated runs before Subscribe returns) and the removal of the last
// subscriber deactivates it (OnDeactivated runs exactly once). Producers use
// these hooks to start and stop expensive resources:
//
//	t := topic.Lazy(startReceiver, stopReceiver)
//	h, err := t.Subscribe(func() bool {
//	    refresh()
//	    return true
//	})
//	...
//	t.Unsubscribe(h)
//
// An activation failure is returned from Subscribe and the subscriber is not
// added.
//
// # Publishing
//
// Publish delivers to a snapshot of the subscribers taken when it starts.
// Subscribers added during a publish are not invoked by it. A panicking
// subscriber is reported to the fault handler and removed; other subscribers
// still run.
//
// # One-shot reads
//
// Read blocks until the next publish that satisfies a predicate, or until
// the context ends. Either way the transient subscriber is gone when Read
// returns.
//
// # Operators
//
// Map, Filter, Distinct, Tap and FromTopic derive new value topics. Derived
// topics are themselves lazy: they subscribe upstream only while they have
// subscribers of their own.
package topic
