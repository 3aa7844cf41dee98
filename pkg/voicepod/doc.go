// Package voicepod implements the control core of a voice-assistant
// endpoint: the device state machine, the main event loop, the audio
// input/output pipelines, and the coordination contract with a
// pluggable transport.
//
// All device state lives on the main loop. Producers — codec ready
// callbacks, transport callbacks, user input — latch event bits or
// re-post closures through Schedule; nothing mutates state from the
// outside.
package voicepod
