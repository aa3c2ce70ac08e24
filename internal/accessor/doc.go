// Package accessor provides containers that apply a policy on every read
// and write of a wrapped value.
//
//   - Lazy computes its value on first read, at most once.
//   - PersistedDefault reads and writes a key in an external kv.Store and
//     falls back to a default when the key is absent.
//   - Clamped keeps an ordered value inside optional, immutable bounds.
//
// Containers are synchronous and not safe for concurrent use.
package accessor
