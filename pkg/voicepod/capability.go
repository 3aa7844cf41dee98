package voicepod

// WakeWordDetector spots the wake phrase in captured audio. Presence is
// a build variant of the hardware; the core treats a nil detector as
// "not fitted". Audio goes straight to the encoder only when neither a
// detector nor an AudioProcessor is fitted.
type WakeWordDetector interface {
	// StartDetection begins monitoring. Safe to call repeatedly.
	StartDetection()

	// StopDetection pauses monitoring.
	StopDetection()

	// IsDetectionRunning reports whether audio should be fed.
	IsDetectionRunning() bool

	// Feed consumes one 16 kHz PCM block.
	Feed(pcm []int16)

	// OnWakeWordDetected registers the detection callback. It fires on
	// the detector's goroutine with the spotted phrase.
	OnWakeWordDetected(fn func(word string))

	// OnVadStateChange registers the voice-activity callback.
	OnVadStateChange(fn func(speaking bool))

	// EncodeWakeWordData starts encoding the audio that preceded the
	// detection, so the server hears the wake word itself.
	EncodeWakeWordData()

	// WakeWordFrames drains the encoded wake-word audio, in order.
	WakeWordFrames() [][]byte
}

// AudioProcessor cleans captured audio (echo cancellation, noise
// suppression) before encoding. Like the wake-word detector it is a
// hardware build variant; nil means "not fitted".
type AudioProcessor interface {
	// Start begins processing. Called when the device enters Listening.
	Start()

	// Stop halts processing. Called when the device leaves Listening.
	Stop()

	// IsRunning reports whether audio should be fed.
	IsRunning() bool

	// Feed consumes one 16 kHz PCM block (interleaved mic+reference
	// when the codec captures two channels).
	Feed(pcm []int16)

	// OnOutput registers the cleaned-audio callback. It fires on the
	// processor's goroutine with mono PCM ready for encoding.
	OnOutput(fn func(pcm []int16))
}
