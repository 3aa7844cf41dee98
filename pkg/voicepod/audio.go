package voicepod

import (
	"github.com/haivivi/voicepod/pkg/audio/opusio"
	"github.com/haivivi/voicepod/pkg/audio/pcm"
)

func (a *Application) newDecoder(rate int) (*opusio.Decoder, error) {
	return opusio.NewDecoder(rate, 1)
}

// inputAudio drains one captured block through the capture pipeline:
// resample to 16 kHz, then route to the capture capabilities or, on a
// bare build, straight to the encoder while Listening.
func (a *Application) inputAudio() {
	data, ok := a.codec.ReadInput()
	if !ok {
		return
	}

	if a.codec.InputSampleRate() != encodeSampleRate {
		if a.codec.InputChannels() == 2 {
			// Mic and reference are interleaved; each channel keeps its
			// own filter state across blocks.
			mic, ref := pcm.Split(data)
			mic, err := a.inputResampler.Process(mic)
			if err != nil {
				a.log.ErrorPrintf("resample mic: %v", err)
				return
			}
			ref, err = a.referenceResampler.Process(ref)
			if err != nil {
				a.log.ErrorPrintf("resample reference: %v", err)
				return
			}
			data = pcm.Interleave(mic, ref)
		} else {
			resampled, err := a.inputResampler.Process(data)
			if err != nil {
				a.log.ErrorPrintf("resample input: %v", err)
				return
			}
			data = resampled
		}
	}

	if a.wakeWord != nil || a.processor != nil {
		if a.wakeWord != nil && a.wakeWord.IsDetectionRunning() {
			a.wakeWord.Feed(data)
		}
		if a.processor != nil && a.processor.IsRunning() {
			a.processor.Feed(data)
		}
		return
	}

	if a.DeviceState() == StateListening {
		a.submitEncode(data)
	}
}

// submitEncode hands one PCM block to the background encoder; each
// resulting packet re-enters the main loop and goes to the transport.
func (a *Application) submitEncode(data []int16) {
	a.bg.Schedule(func() {
		err := a.encoder.Encode(data, func(packet []byte) {
			a.Schedule(func() {
				if err := a.proto.SendAudio(packet); err != nil {
					a.log.WarnPrintf("send audio: %v", err)
				}
			})
		})
		if err != nil {
			// Drop the block; the session stays alive.
			a.log.ErrorPrintf("encode: %v", err)
		}
	})
}

// outputAudio services the playback side: power management when idle,
// queue discard while listening, otherwise one frame to the background
// decoder.
func (a *Application) outputAudio() {
	now := a.now()

	a.mu.Lock()
	if len(a.decodeQueue) == 0 {
		// Disable the output when nothing has played for a while.
		if a.DeviceState() == StateIdle && a.outputEnabled && now.Sub(a.lastOutputTime) > maxIdleSilence {
			a.outputEnabled = false
			a.codec.EnableOutput(false)
		}
		a.mu.Unlock()
		return
	}

	if a.DeviceState() == StateListening {
		// Late TTS packets from a previous turn must not leak into the
		// current listening turn.
		a.decodeQueue = nil
		a.mu.Unlock()
		return
	}

	a.lastOutputTime = now
	frame := a.decodeQueue[0]
	a.decodeQueue = a.decodeQueue[1:]
	a.mu.Unlock()

	a.bg.Schedule(func() {
		if a.aborted.Load() {
			return
		}
		data, err := a.decoder.Decode(frame)
		if err != nil {
			// Drop the frame; the session stays alive.
			a.log.WarnPrintf("decode: %v", err)
			return
		}
		if !a.outputResampler.Bypassed() {
			data, err = a.outputResampler.Process(data)
			if err != nil {
				a.log.ErrorPrintf("resample output: %v", err)
				return
			}
		}
		if err := a.codec.WriteOutput(data); err != nil {
			a.log.WarnPrintf("write output: %v", err)
		}
	})
}

// resetDecoder clears the decode queue, restores fresh decoder state,
// and re-enables the codec output. Main loop only.
func (a *Application) resetDecoder() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.decoder.Reset(); err != nil {
		a.log.ErrorPrintf("reset decoder: %v", err)
	}
	a.decodeQueue = nil
	a.lastOutputTime = a.now()
	a.outputEnabled = true
	a.codec.EnableOutput(true)
}

// setDecodeSampleRate rebuilds the decoder for a new source rate and
// configures the output resampler when the codec plays at a different
// rate. Main loop only; a matching rate is a no-op.
func (a *Application) setDecodeSampleRate(rate int) {
	if a.decodeSampleRate == rate {
		return
	}

	// In-flight decode tasks still hold the old decoder.
	a.bg.WaitForCompletion()

	decoder, err := a.newDecoder(rate)
	if err != nil {
		a.log.ErrorPrintf("set decode sample rate: %v", err)
		return
	}
	a.decodeSampleRate = rate
	a.decoder = decoder

	codecRate := a.codec.OutputSampleRate()
	if rate != codecRate {
		a.log.InfoPrintf("resampling output from %d to %d", rate, codecRate)
	}
	if err := a.outputResampler.Configure(rate, codecRate); err != nil {
		a.log.ErrorPrintf("configure output resampler: %v", err)
	}
}
