package voicepod

import "encoding/json"

// DeviceState is the canonical device state. Exactly one value is held
// at any moment; transitions happen only on the main loop.
type DeviceState int

const (
	StateUnknown DeviceState = iota
	StateStarting
	StateConfiguring
	StateIdle
	StateConnecting
	StateListening
	StateSpeaking
	StateUpgrading
	StateFatalError
	StateInvalid
)

// String returns the state's log name.
func (s DeviceState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateStarting:
		return "starting"
	case StateConfiguring:
		return "configuring"
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateSpeaking:
		return "speaking"
	case StateUpgrading:
		return "upgrading"
	case StateFatalError:
		return "fatal_error"
	default:
		return "invalid_state"
	}
}

// MarshalJSON implements json.Marshaler.
func (s DeviceState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *DeviceState) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch name {
	case "unknown":
		*s = StateUnknown
	case "starting":
		*s = StateStarting
	case "configuring":
		*s = StateConfiguring
	case "idle":
		*s = StateIdle
	case "connecting":
		*s = StateConnecting
	case "listening":
		*s = StateListening
	case "speaking":
		*s = StateSpeaking
	case "upgrading":
		*s = StateUpgrading
	case "fatal_error":
		*s = StateFatalError
	default:
		*s = StateInvalid
	}
	return nil
}

// legalTransition reports whether the control path may move from cur to
// next. Upgrading and FatalError are terminal and reachable from
// anywhere; everything else follows the chat flow.
func legalTransition(cur, next DeviceState) bool {
	if next == StateUpgrading || next == StateFatalError {
		return true
	}
	switch cur {
	case StateUnknown:
		return next == StateStarting
	case StateStarting:
		return next == StateConfiguring || next == StateIdle
	case StateConfiguring:
		return next == StateIdle
	case StateIdle:
		// Idle -> Listening happens when the audio channel is already
		// open and a listening turn starts without reconnecting.
		return next == StateConnecting || next == StateSpeaking || next == StateListening
	case StateConnecting:
		return next == StateListening || next == StateIdle
	case StateListening:
		return next == StateSpeaking || next == StateIdle
	case StateSpeaking:
		return next == StateListening || next == StateIdle
	default:
		return false
	}
}
