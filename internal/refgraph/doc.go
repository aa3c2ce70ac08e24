// Package refgraph simulates reference-counted object lifetimes.
//
// A Simulator owns an arena of objects connected by references of three
// kinds. Strong references keep their target alive; weak references observe
// their target and read as empty once it is destroyed; unowned references
// observe their target without ever being emptied, and reading one after the
// target is gone is a fatal DANGLING_REFERENCE error.
//
// References originate at holders. A holder is a live object, the Root
// binding table (program-lifetime globals) or an open Scope (a local frame).
// An object is destroyed exactly once, when its last strong reference is
// released. Destruction empties every weak reference to the object, then
// releases the object's own references in the order they were added, so
// strong releases cascade depth-first in a deterministic order.
//
// Every mutation is stamped with a logical sequence number and recorded as
// an Event. The event log is deterministic: the same calls against a
// simulator with the same clock and run token produce the same Digest.
//
// The simulator is single-threaded. Callers that share one across
// goroutines must serialize access themselves.
package refgraph
