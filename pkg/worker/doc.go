// Package worker provides a single-goroutine background executor for
// CPU-bound work (audio encode/decode) that must stay off the control
// path. A single worker is deliberate: submission order is preserved,
// execution is deterministic, and peak memory stays bounded.
package worker
