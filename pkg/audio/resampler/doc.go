// Package resampler converts 16-bit PCM between sample rates. Filter
// state persists across Process calls so consecutive blocks stay
// continuous at their boundaries. A converter configured with equal
// source and target rates is bypassed entirely.
package resampler
