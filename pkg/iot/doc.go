// Package iot implements the thing registry: named device capabilities
// with a descriptor (schema), a state (current values), and invocable
// methods. The cloud reads descriptors and states as JSON and mutates
// things through commands.
package iot
