// Package ir provides the canonical value representation used to fingerprint
// simulator traces.
//
// ir imports nothing internal. Trace records are converted into IRObject
// values, serialized with MarshalCanonical and hashed with domain separation,
// so two runs that produce the same events produce the same digest.
//
// Key constraints:
//   - NO float types (traces only carry ids, counters and labels)
//   - All keys use snake_case
//   - Logical sequence numbers only, never wall-clock timestamps
package ir
