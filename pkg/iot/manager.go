package iot

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Manager is the registry of things. Registration order is preserved in
// the JSON payloads so repeated serializations of unchanged state are
// byte-identical, which the core relies on to suppress duplicate
// publishes.
type Manager struct {
	mu     sync.Mutex
	things []Thing
	index  map[string]Thing
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{index: make(map[string]Thing)}
}

// Register adds a thing. Duplicate names are rejected.
func (m *Manager) Register(t Thing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := t.Name()
	if _, ok := m.index[name]; ok {
		return fmt.Errorf("iot: thing %q already registered", name)
	}
	m.things = append(m.things, t)
	m.index[name] = t
	return nil
}

// DescriptorsJSON returns all thing descriptors as a JSON array.
func (m *Manager) DescriptorsJSON() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	descriptors := make([]Descriptor, 0, len(m.things))
	for _, t := range m.things {
		descriptors = append(descriptors, t.Descriptor())
	}
	return mustJSON(descriptors)
}

// StatesJSON returns all thing states as a JSON array of
// {name, state} objects, in registration order.
func (m *Manager) StatesJSON() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	type entry struct {
		Name  string         `json:"name"`
		State map[string]any `json:"state"`
	}
	states := make([]entry, 0, len(m.things))
	for _, t := range m.things {
		states = append(states, entry{Name: t.Name(), State: t.State()})
	}
	return mustJSON(states)
}

// Invoke routes a command to the named thing.
func (m *Manager) Invoke(cmd Command) error {
	m.mu.Lock()
	t, ok := m.index[cmd.Name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("iot: unknown thing %q", cmd.Name)
	}
	if err := t.Invoke(cmd.Method, cmd.Parameters); err != nil {
		return fmt.Errorf("iot: invoke %s.%s: %w", cmd.Name, cmd.Method, err)
	}
	return nil
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Descriptors and states are plain data; a marshal failure is a
		// programmer error.
		panic(fmt.Sprintf("iot: marshal: %v", err))
	}
	return string(b)
}
