package opusio

import (
	"fmt"
	"time"

	opus "gopkg.in/hraban/opus.v2"
)

// maxPacketSize is large enough for any single opus packet (RFC 6716
// caps packets at 1275 bytes per frame; leave headroom for multi-frame
// packets).
const maxPacketSize = 4000

// Encoder buffers PCM samples and emits one compressed packet per
// complete frame of the configured duration. Partial frames stay
// buffered until the next Encode call or a Reset. Not safe for
// concurrent use; the core runs it on a single background worker.
type Encoder struct {
	sampleRate    int
	channels      int
	frameDuration time.Duration
	frameSize     int // samples per frame, all channels

	enc     *opus.Encoder
	pending []int16
	packet  []byte
}

// NewEncoder creates an Encoder producing frames of the given duration.
// Opus accepts 2.5, 5, 10, 20, 40 or 60 ms frames.
func NewEncoder(sampleRate, channels int, frameDuration time.Duration) (*Encoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opusio: new encoder: %w", err)
	}
	frameSize := int(int64(sampleRate*channels) * int64(frameDuration) / int64(time.Second))
	if frameSize <= 0 {
		return nil, fmt.Errorf("opusio: invalid frame duration %v", frameDuration)
	}
	return &Encoder{
		sampleRate:    sampleRate,
		channels:      channels,
		frameDuration: frameDuration,
		frameSize:     frameSize,
		enc:           enc,
		packet:        make([]byte, maxPacketSize),
	}, nil
}

// SampleRate returns the encoder's input sample rate.
func (e *Encoder) SampleRate() int { return e.sampleRate }

// FrameDuration returns the duration of each emitted packet.
func (e *Encoder) FrameDuration() time.Duration { return e.frameDuration }

// Encode appends pcm to the pending buffer and invokes emit once per
// complete frame, in order. Each packet passed to emit is freshly
// allocated and safe to retain.
func (e *Encoder) Encode(pcm []int16, emit func(packet []byte)) error {
	e.pending = append(e.pending, pcm...)
	for len(e.pending) >= e.frameSize {
		n, err := e.enc.Encode(e.pending[:e.frameSize], e.packet)
		if err != nil {
			return fmt.Errorf("opusio: encode: %w", err)
		}
		out := make([]byte, n)
		copy(out, e.packet[:n])
		e.pending = e.pending[e.frameSize:]
		emit(out)
	}
	return nil
}

// Reset drops buffered samples and restores a fresh codec state, so the
// next frame does not carry prediction from a previous turn.
func (e *Encoder) Reset() error {
	e.pending = e.pending[:0]
	enc, err := opus.NewEncoder(e.sampleRate, e.channels, opus.AppVoIP)
	if err != nil {
		return fmt.Errorf("opusio: reset encoder: %w", err)
	}
	e.enc = enc
	return nil
}
