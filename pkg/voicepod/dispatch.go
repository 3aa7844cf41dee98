package voicepod

import "github.com/haivivi/voicepod/pkg/protocol"

// handleServerMessage interprets one structured control message from
// the transport. State mutations re-enter through Schedule; display and
// thing-manager calls are internally synchronized and run inline.
// Unrecognized types are ignored.
func (a *Application) handleServerMessage(msg *protocol.ServerMessage) {
	switch msg.Type {
	case "tts":
		a.handleTTS(msg)
	case "stt":
		if msg.Text != "" {
			a.log.InfoPrintf(">> %s", msg.Text)
			a.board.Display().SetChatMessage("user", msg.Text)
		}
	case "llm":
		if msg.Emotion != "" {
			a.board.Display().SetEmotion(msg.Emotion)
		}
	case "iot":
		for _, cmd := range msg.Commands {
			if err := a.things.Invoke(cmd); err != nil {
				a.log.WarnPrintf("iot command: %v", err)
			}
		}
	}
}

func (a *Application) handleTTS(msg *protocol.ServerMessage) {
	switch msg.State {
	case "start":
		a.Schedule(func() {
			a.aborted.Store(false)
			if s := a.DeviceState(); s == StateIdle || s == StateListening {
				a.setDeviceState(StateSpeaking)
			}
		})
	case "stop":
		a.Schedule(func() {
			if a.DeviceState() != StateSpeaking {
				return
			}
			// Let queued decode work play out before deciding where to
			// land.
			a.bg.WaitForCompletion()
			if a.keepListening {
				if err := a.proto.SendStartListening(protocol.ListeningAutoStop); err != nil {
					a.log.WarnPrintf("send start listening: %v", err)
				}
				a.setDeviceState(StateListening)
			} else {
				a.setDeviceState(StateIdle)
			}
		})
	case "sentence_start":
		if msg.Text != "" {
			a.log.InfoPrintf("<< %s", msg.Text)
			a.board.Display().SetChatMessage("assistant", msg.Text)
		}
	}
}
