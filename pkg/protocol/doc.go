// Package protocol defines the contract between the device core and a
// transport: the operations the core invokes, the callbacks the
// transport fires, and the structured message schema both sides speak.
//
// Transport callbacks run on the transport's own goroutines. The core
// re-posts anything that touches its state through its scheduler; a
// transport never sees core internals.
package protocol
