// Package pcm provides helpers for 16-bit signed PCM sample buffers:
// stereo de-interleaving, byte conversion, and duration math.
package pcm
