// Package opusio wraps the opus codec in the streaming shapes the
// device pipelines need: an encoder that buffers PCM and emits one
// packet per fixed-duration frame, and a packet decoder.
package opusio
