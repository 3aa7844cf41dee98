package iot

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

type lamp struct {
	mu sync.Mutex
	on bool
}

func (l *lamp) Name() string { return "Lamp" }

func (l *lamp) Descriptor() Descriptor {
	return Descriptor{
		Name:        "Lamp",
		Description: "A test lamp",
		Properties:  []Property{{Name: "power", Description: "on/off", Type: "boolean"}},
		Methods: []MethodDesc{
			{Name: "TurnOn", Description: "turn the lamp on"},
			{Name: "TurnOff", Description: "turn the lamp off"},
		},
	}
}

func (l *lamp) State() map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return map[string]any{"power": l.on}
}

func (l *lamp) Invoke(method string, _ map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch method {
	case "TurnOn":
		l.on = true
	case "TurnOff":
		l.on = false
	default:
		return errUnknownMethod
	}
	return nil
}

var errUnknownMethod = errors.New("unknown method")

func TestManager_RegisterDuplicate(t *testing.T) {
	m := NewManager()
	if err := m.Register(&lamp{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(&lamp{}); err == nil {
		t.Fatal("want error for duplicate name")
	}
}

func TestManager_DescriptorsJSON(t *testing.T) {
	m := NewManager()
	if err := m.Register(&lamp{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var descriptors []Descriptor
	if err := json.Unmarshal([]byte(m.DescriptorsJSON()), &descriptors); err != nil {
		t.Fatalf("unmarshal descriptors: %v", err)
	}
	if len(descriptors) != 1 || descriptors[0].Name != "Lamp" {
		t.Fatalf("descriptors = %+v", descriptors)
	}
}

func TestManager_InvokeChangesState(t *testing.T) {
	m := NewManager()
	l := &lamp{}
	if err := m.Register(l); err != nil {
		t.Fatalf("Register: %v", err)
	}

	before := m.StatesJSON()
	if !strings.Contains(before, `"power":false`) {
		t.Fatalf("states = %s", before)
	}

	if err := m.Invoke(Command{Name: "Lamp", Method: "TurnOn"}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	after := m.StatesJSON()
	if !strings.Contains(after, `"power":true`) {
		t.Fatalf("states = %s", after)
	}
	if before == after {
		t.Fatal("state did not change")
	}
}

func TestManager_StatesJSONStable(t *testing.T) {
	m := NewManager()
	if err := m.Register(&lamp{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if m.StatesJSON() != m.StatesJSON() {
		t.Fatal("unchanged state serialized differently")
	}
}

func TestManager_InvokeUnknownThing(t *testing.T) {
	m := NewManager()
	if err := m.Invoke(Command{Name: "Ghost", Method: "Boo"}); err == nil {
		t.Fatal("want error for unknown thing")
	}
}
