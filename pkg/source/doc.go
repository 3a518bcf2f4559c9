// Package source provides ready-made producers built on package sensor and
// package topic: a timer, a file-system watcher and an OS signal relay.
// Each one only holds resources while it has listeners.
package source
