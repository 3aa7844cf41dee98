package protocol

import "encoding/json"

// AudioParams describes the audio format of one side of a session.
type AudioParams struct {
	Format        string `json:"format"`
	SampleRate    int    `json:"sample_rate"`
	Channels      int    `json:"channels"`
	FrameDuration int    `json:"frame_duration"` // milliseconds
}

// HelloMessage opens a session. The client sends its audio parameters;
// the server answers with its own, fixing ServerSampleRate for the
// session.
type HelloMessage struct {
	Type        string      `json:"type"`
	Version     int         `json:"version,omitempty"`
	Transport   string      `json:"transport,omitempty"`
	SessionID   string      `json:"session_id,omitempty"`
	AudioParams AudioParams `json:"audio_params"`
}

// ListenMessage starts or stops a listening turn.
type ListenMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	State     string `json:"state"`
	Mode      string `json:"mode,omitempty"`
	// Text carries the spotted wake word with state "detect".
	Text string `json:"text,omitempty"`
}

// AbortMessage asks the server to stop synthesizing speech.
type AbortMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// IotMessage publishes thing descriptors or states. Exactly one of
// Descriptors and States is set, as raw JSON produced by the thing
// manager and forwarded verbatim.
type IotMessage struct {
	Type        string          `json:"type"`
	SessionID   string          `json:"session_id,omitempty"`
	Descriptors json.RawMessage `json:"descriptors,omitempty"`
	States      json.RawMessage `json:"states,omitempty"`
}

// GoodbyeMessage ends a session.
type GoodbyeMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
}

// NewListenMessage builds a listen message for the given state. Mode is
// included only for state "start".
func NewListenMessage(sessionID, state string, mode ListeningMode) *ListenMessage {
	msg := &ListenMessage{Type: "listen", SessionID: sessionID, State: state}
	if state == "start" {
		msg.Mode = mode.String()
	}
	return msg
}

// NewAbortMessage builds an abort message. AbortNone omits the reason.
func NewAbortMessage(sessionID string, reason AbortReason) *AbortMessage {
	msg := &AbortMessage{Type: "abort", SessionID: sessionID}
	if reason != AbortNone {
		msg.Reason = reason.String()
	}
	return msg
}
