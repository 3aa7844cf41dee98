package opusio

import (
	"fmt"

	opus "gopkg.in/hraban/opus.v2"
)

// maxFrameDurationMs bounds the decode buffer; opus packets carry at
// most 120 ms of audio.
const maxFrameDurationMs = 120

// Decoder decodes opus packets into PCM at a fixed output rate. Not
// safe for concurrent use; the core runs it on a single background
// worker.
type Decoder struct {
	sampleRate int
	channels   int

	dec *opus.Decoder
	buf []int16
}

// NewDecoder creates a Decoder producing PCM at the given rate.
func NewDecoder(sampleRate, channels int) (*Decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("opusio: new decoder: %w", err)
	}
	return &Decoder{
		sampleRate: sampleRate,
		channels:   channels,
		dec:        dec,
		buf:        make([]int16, sampleRate*channels*maxFrameDurationMs/1000),
	}, nil
}

// SampleRate returns the decoder's output sample rate.
func (d *Decoder) SampleRate() int { return d.sampleRate }

// Decode decodes one packet. The returned slice is freshly allocated
// and safe to retain.
func (d *Decoder) Decode(packet []byte) ([]int16, error) {
	n, err := d.dec.Decode(packet, d.buf)
	if err != nil {
		return nil, fmt.Errorf("opusio: decode: %w", err)
	}
	out := make([]int16, n*d.channels)
	copy(out, d.buf[:n*d.channels])
	return out, nil
}

// Reset restores a fresh codec state, dropping prediction carried from
// previously decoded packets.
func (d *Decoder) Reset() error {
	dec, err := opus.NewDecoder(d.sampleRate, d.channels)
	if err != nil {
		return fmt.Errorf("opusio: reset decoder: %w", err)
	}
	d.dec = dec
	return nil
}
