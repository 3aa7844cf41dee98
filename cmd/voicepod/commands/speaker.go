package commands

import (
	"fmt"
	"sync"

	"github.com/haivivi/voicepod/pkg/iot"
)

// speakerThing exposes playback volume to the cloud as an IoT thing.
type speakerThing struct {
	mu     sync.Mutex
	volume int
}

func (s *speakerThing) Name() string { return "Speaker" }

func (s *speakerThing) Descriptor() iot.Descriptor {
	return iot.Descriptor{
		Name:        "Speaker",
		Description: "The device speaker",
		Properties: []iot.Property{
			{Name: "volume", Description: "Current volume, 0-100", Type: "number"},
		},
		Methods: []iot.MethodDesc{
			{
				Name:        "SetVolume",
				Description: "Set the playback volume",
				Parameters: []iot.Parameter{
					{Name: "volume", Description: "Volume, 0-100", Type: "number", Required: true},
				},
			},
		},
	}
}

func (s *speakerThing) State() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{"volume": s.volume}
}

func (s *speakerThing) Invoke(method string, parameters map[string]any) error {
	switch method {
	case "SetVolume":
		v, ok := parameters["volume"].(float64)
		if !ok || v < 0 || v > 100 {
			return fmt.Errorf("invalid volume %v", parameters["volume"])
		}
		s.mu.Lock()
		s.volume = int(v)
		s.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("unknown method %q", method)
	}
}
