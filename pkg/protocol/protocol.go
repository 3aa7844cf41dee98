package protocol

import (
	"context"
	"encoding/json"

	"github.com/haivivi/voicepod/pkg/iot"
)

// ListeningMode tells the server how a listening turn ends.
type ListeningMode int

const (
	// ListeningAutoStop lets the server end the turn on silence.
	ListeningAutoStop ListeningMode = iota
	// ListeningManualStop keeps the turn open until the user stops it.
	ListeningManualStop
	// ListeningRealtime streams continuously without turn boundaries.
	ListeningRealtime
)

// String returns the wire name of the mode.
func (m ListeningMode) String() string {
	switch m {
	case ListeningAutoStop:
		return "auto"
	case ListeningManualStop:
		return "manual"
	case ListeningRealtime:
		return "realtime"
	default:
		return "auto"
	}
}

// MarshalJSON implements json.Marshaler.
func (m ListeningMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// AbortReason qualifies a playback abort.
type AbortReason int

const (
	// AbortNone is a plain user-initiated abort.
	AbortNone AbortReason = iota
	// AbortWakeWordDetected means the wake word preempted playback.
	AbortWakeWordDetected
)

// String returns the wire name of the reason.
func (r AbortReason) String() string {
	switch r {
	case AbortWakeWordDetected:
		return "wake_word_detected"
	default:
		return "none"
	}
}

// Handler carries the callbacks a transport fires into the core. Any
// field may be nil. Callbacks run on transport goroutines; the core's
// handlers re-post through its scheduler before touching state.
type Handler struct {
	// OnNetworkError reports a transport failure with a displayable message.
	OnNetworkError func(message string)

	// OnIncomingAudio delivers one compressed audio frame.
	OnIncomingAudio func(frame []byte)

	// OnIncomingMessage delivers one structured control message.
	OnIncomingMessage func(msg *ServerMessage)

	// OnAudioChannelOpened fires after a successful channel handshake.
	OnAudioChannelOpened func()

	// OnAudioChannelClosed fires when the channel goes away, whether
	// locally closed or dropped by the peer.
	OnAudioChannelClosed func()
}

// Protocol is the transport contract the core drives. Implementations
// must be safe for concurrent use.
type Protocol interface {
	// SetHandler registers the core's callbacks. It must be called
	// before OpenAudioChannel.
	SetHandler(h *Handler)

	// OpenAudioChannel establishes the audio session. It may block
	// while connecting and handshaking.
	OpenAudioChannel(ctx context.Context) error

	// CloseAudioChannel tears the session down.
	CloseAudioChannel()

	// IsAudioChannelOpened reports whether a session is established.
	IsAudioChannelOpened() bool

	// SendAudio sends one compressed audio frame.
	SendAudio(frame []byte) error

	// SendStartListening announces the start of a listening turn.
	SendStartListening(mode ListeningMode) error

	// SendStopListening announces the end of a listening turn.
	SendStopListening() error

	// SendAbortSpeaking asks the server to stop synthesizing.
	SendAbortSpeaking(reason AbortReason) error

	// SendWakeWordDetected reports a spotted wake word.
	SendWakeWordDetected(word string) error

	// SendIotDescriptors publishes the thing schemas.
	SendIotDescriptors(descriptors string) error

	// SendIotStates publishes the current thing states.
	SendIotStates(states string) error

	// ServerSampleRate returns the sample rate of server audio,
	// negotiated during the channel handshake.
	ServerSampleRate() int

	// Close releases the transport.
	Close() error
}

// ServerMessage is one structured control message from the cloud,
// discriminated by Type ("tts", "stt", "llm", "iot"). Unknown types are
// ignored by the core.
type ServerMessage struct {
	Type      string        `json:"type"`
	State     string        `json:"state,omitempty"`
	Text      string        `json:"text,omitempty"`
	Emotion   string        `json:"emotion,omitempty"`
	Commands  []iot.Command `json:"commands,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
}
