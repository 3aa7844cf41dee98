// Package portaudio implements the board audio codec on top of host
// audio devices via PortAudio. It is the desktop stand-in for the
// embedded codec driver: capture and playback run on PortAudio's
// callback threads, which only latch buffers and fire ready callbacks.
package portaudio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/haivivi/voicepod/pkg/board"
)

const framesPerBuffer = 512

// Options configures a Codec.
type Options struct {
	InputSampleRate  int // default 16000
	OutputSampleRate int // default 16000
	InputChannels    int // default 1
}

// Codec is a PortAudio-backed board.AudioCodec.
type Codec struct {
	opts Options

	mu            sync.Mutex
	in            *portaudio.Stream
	out           *portaudio.Stream
	captured      [][]int16
	playback      []int16
	outputEnabled bool
	started       bool

	onInput  func()
	onOutput func()
}

var _ board.AudioCodec = (*Codec)(nil)

// New creates a Codec. The streams open on Start.
func New(opts Options) *Codec {
	if opts.InputSampleRate == 0 {
		opts.InputSampleRate = 16000
	}
	if opts.OutputSampleRate == 0 {
		opts.OutputSampleRate = 16000
	}
	if opts.InputChannels == 0 {
		opts.InputChannels = 1
	}
	return &Codec{opts: opts, outputEnabled: true}
}

// Start implements board.AudioCodec.
func (c *Codec) Start() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}

	in, err := portaudio.OpenDefaultStream(
		c.opts.InputChannels, 0,
		float64(c.opts.InputSampleRate), framesPerBuffer,
		c.captureCallback,
	)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("portaudio: open input: %w", err)
	}

	out, err := portaudio.OpenDefaultStream(
		0, 1,
		float64(c.opts.OutputSampleRate), framesPerBuffer,
		c.playbackCallback,
	)
	if err != nil {
		in.Close()
		portaudio.Terminate()
		return fmt.Errorf("portaudio: open output: %w", err)
	}

	c.mu.Lock()
	c.in = in
	c.out = out
	c.started = true
	c.mu.Unlock()

	if err := in.Start(); err != nil {
		return fmt.Errorf("portaudio: start input: %w", err)
	}
	if err := out.Start(); err != nil {
		return fmt.Errorf("portaudio: start output: %w", err)
	}
	return nil
}

// captureCallback runs on PortAudio's capture thread. It copies the
// block and latches the input-ready signal; nothing else.
func (c *Codec) captureCallback(in []int16) {
	block := make([]int16, len(in))
	copy(block, in)

	c.mu.Lock()
	c.captured = append(c.captured, block)
	fn := c.onInput
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// playbackCallback runs on PortAudio's playback thread. It drains the
// queued PCM and signals output-ready when there is room for more.
func (c *Codec) playbackCallback(out []int16) {
	c.mu.Lock()
	n := copy(out, c.playback)
	c.playback = c.playback[n:]
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	room := len(c.playback) < c.opts.OutputSampleRate/2
	fn := c.onOutput
	c.mu.Unlock()

	if room && fn != nil {
		fn()
	}
}

// Close implements board.AudioCodec.
func (c *Codec) Close() error {
	c.mu.Lock()
	in, out := c.in, c.out
	started := c.started
	c.in, c.out = nil, nil
	c.started = false
	c.mu.Unlock()

	if in != nil {
		in.Stop()
		in.Close()
	}
	if out != nil {
		out.Stop()
		out.Close()
	}
	if started {
		return portaudio.Terminate()
	}
	return nil
}

// InputSampleRate implements board.AudioCodec.
func (c *Codec) InputSampleRate() int { return c.opts.InputSampleRate }

// OutputSampleRate implements board.AudioCodec.
func (c *Codec) OutputSampleRate() int { return c.opts.OutputSampleRate }

// InputChannels implements board.AudioCodec.
func (c *Codec) InputChannels() int { return c.opts.InputChannels }

// OnInputReady implements board.AudioCodec.
func (c *Codec) OnInputReady(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onInput = fn
}

// OnOutputReady implements board.AudioCodec.
func (c *Codec) OnOutputReady(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onOutput = fn
}

// ReadInput implements board.AudioCodec.
func (c *Codec) ReadInput() ([]int16, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.captured) == 0 {
		return nil, false
	}
	block := c.captured[0]
	c.captured = c.captured[1:]
	return block, true
}

// WriteOutput implements board.AudioCodec.
func (c *Codec) WriteOutput(pcm []int16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.outputEnabled {
		return nil
	}
	c.playback = append(c.playback, pcm...)
	return nil
}

// EnableOutput implements board.AudioCodec.
func (c *Codec) EnableOutput(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputEnabled = enabled
	if !enabled {
		c.playback = nil
	}
}
