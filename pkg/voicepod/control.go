package voicepod

import (
	"context"
	"time"

	"github.com/haivivi/voicepod/pkg/prompt"
	"github.com/haivivi/voicepod/pkg/protocol"
)

// ToggleChatState is the single-button control: from Idle it opens a
// hands-free conversation, while Speaking it aborts playback, while
// Listening it hangs up. Safe from any goroutine.
func (a *Application) ToggleChatState() {
	a.Schedule(func() {
		switch a.DeviceState() {
		case StateIdle:
			a.setDeviceState(StateConnecting)
			if err := a.proto.OpenAudioChannel(context.Background()); err != nil {
				a.log.ErrorPrintf("open audio channel: %v", err)
				a.alert("Error", "Failed to open audio channel")
				a.setDeviceState(StateIdle)
				return
			}
			a.keepListening = true
			if err := a.proto.SendStartListening(protocol.ListeningAutoStop); err != nil {
				a.log.WarnPrintf("send start listening: %v", err)
			}
			a.setDeviceState(StateListening)
		case StateSpeaking:
			a.abortSpeaking(protocol.AbortNone)
		case StateListening:
			a.proto.CloseAudioChannel()
		}
	})
}

// StartListening begins a push-to-talk turn: the server keeps the turn
// open until StopListening. Safe from any goroutine.
func (a *Application) StartListening() {
	a.Schedule(func() {
		a.keepListening = false
		switch a.DeviceState() {
		case StateIdle:
			if !a.proto.IsAudioChannelOpened() {
				a.setDeviceState(StateConnecting)
				if err := a.proto.OpenAudioChannel(context.Background()); err != nil {
					a.log.ErrorPrintf("open audio channel: %v", err)
					a.setDeviceState(StateIdle)
					a.alert("Error", "Failed to open audio channel")
					return
				}
			}
			if err := a.proto.SendStartListening(protocol.ListeningManualStop); err != nil {
				a.log.WarnPrintf("send start listening: %v", err)
			}
			a.setDeviceState(StateListening)
		case StateSpeaking:
			a.abortSpeaking(protocol.AbortNone)
			if err := a.proto.SendStartListening(protocol.ListeningManualStop); err != nil {
				a.log.WarnPrintf("send start listening: %v", err)
			}
			// TODO: replace with a drain-complete signal from the codec
			// instead of assuming the speaker empties within 120 ms.
			a.sleep(120 * time.Millisecond)
			a.setDeviceState(StateListening)
		}
	})
}

// StopListening ends a push-to-talk turn. Safe from any goroutine.
func (a *Application) StopListening() {
	a.Schedule(func() {
		if a.DeviceState() != StateListening {
			return
		}
		if err := a.proto.SendStopListening(); err != nil {
			a.log.WarnPrintf("send stop listening: %v", err)
		}
		a.setDeviceState(StateIdle)
	})
}

// AbortSpeaking interrupts playback. Safe from any goroutine.
func (a *Application) AbortSpeaking(reason protocol.AbortReason) {
	a.Schedule(func() { a.abortSpeaking(reason) })
}

// abortSpeaking sets the cooperative cancellation flag and tells the
// server. In-flight decode tasks observe the flag and drop their
// output; the flag clears on the next synthesis turn.
func (a *Application) abortSpeaking(reason protocol.AbortReason) {
	a.log.InfoPrintf("abort speaking")
	a.aborted.Store(true)
	if err := a.proto.SendAbortSpeaking(reason); err != nil {
		a.log.WarnPrintf("send abort speaking: %v", err)
	}
}

// onWakeWordDetected handles a spotted wake word. Main loop only.
func (a *Application) onWakeWordDetected(word string) {
	switch a.DeviceState() {
	case StateIdle:
		a.setDeviceState(StateConnecting)
		a.wakeWord.EncodeWakeWordData()

		if err := a.proto.OpenAudioChannel(context.Background()); err != nil {
			a.log.ErrorPrintf("open audio channel: %v", err)
			a.setDeviceState(StateIdle)
			a.wakeWord.StartDetection()
			return
		}

		// The server hears the wake word itself before the turn opens.
		for _, frame := range a.wakeWord.WakeWordFrames() {
			if err := a.proto.SendAudio(frame); err != nil {
				a.log.WarnPrintf("send wake word audio: %v", err)
				break
			}
		}
		if err := a.proto.SendWakeWordDetected(word); err != nil {
			a.log.WarnPrintf("send wake word: %v", err)
		}
		a.log.InfoPrintf("wake word detected: %s", word)
		a.keepListening = true
		a.setDeviceState(StateListening)
	case StateSpeaking:
		a.abortSpeaking(protocol.AbortWakeWordDetected)
	}

	a.wakeWord.StartDetection()
}

// Alert shows an error to the user and plays the matching local prompt
// when one is registered. Safe from any goroutine.
func (a *Application) Alert(title, message string) {
	a.Schedule(func() { a.alert(title, message) })
}

// alert is the main-loop body of Alert.
func (a *Application) alert(title, message string) {
	a.log.WarnPrintf("alert: %s, %s", title, message)
	a.board.Display().ShowNotification(message)
	if blob, ok := a.prompts[message]; ok {
		a.playPrompt(blob)
	}
}

// PlayLocalPrompt plays a framed prompt blob through the decode queue.
// Safe from any goroutine.
func (a *Application) PlayLocalPrompt(data []byte) {
	a.Schedule(func() { a.playPrompt(data) })
}

// playPrompt parses a prompt blob and queues its packets for decode.
// Canned prompts are encoded at 16 kHz. Main loop only.
func (a *Application) playPrompt(data []byte) {
	a.log.InfoPrintf("play prompt: %d bytes", len(data))
	a.setDecodeSampleRate(16000)
	for rec, err := range prompt.Records(data) {
		if err != nil {
			a.log.ErrorPrintf("parse prompt: %v", err)
			return
		}
		payload := make([]byte, len(rec.Payload))
		copy(payload, rec.Payload)
		a.mu.Lock()
		a.decodeQueue = append(a.decodeQueue, payload)
		a.mu.Unlock()
	}
}

// sleep pauses the main loop, returning early when the application
// closes.
func (a *Application) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-a.done:
	}
}
