package voicepod

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/haivivi/voicepod/pkg/board"
	"github.com/haivivi/voicepod/pkg/protocol"
)

var errTest = errors.New("test failure")

// fakeClock is a settable time source for the application.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeCodec struct {
	mu sync.Mutex

	inputRate     int
	outputRate    int
	inputChannels int

	input   [][]int16
	written [][]int16

	enableOutputCalls []bool

	onInput  func()
	onOutput func()
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{inputRate: 16000, outputRate: 16000, inputChannels: 1}
}

func (c *fakeCodec) Start() error { return nil }
func (c *fakeCodec) Close() error { return nil }

func (c *fakeCodec) InputSampleRate() int  { return c.inputRate }
func (c *fakeCodec) OutputSampleRate() int { return c.outputRate }
func (c *fakeCodec) InputChannels() int    { return c.inputChannels }

func (c *fakeCodec) OnInputReady(fn func())  { c.onInput = fn }
func (c *fakeCodec) OnOutputReady(fn func()) { c.onOutput = fn }

func (c *fakeCodec) ReadInput() ([]int16, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.input) == 0 {
		return nil, false
	}
	block := c.input[0]
	c.input = c.input[1:]
	return block, true
}

func (c *fakeCodec) WriteOutput(pcm []int16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, pcm)
	return nil
}

func (c *fakeCodec) EnableOutput(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enableOutputCalls = append(c.enableOutputCalls, enabled)
}

func (c *fakeCodec) pushInput(pcm []int16) {
	c.mu.Lock()
	c.input = append(c.input, pcm)
	c.mu.Unlock()
}

func (c *fakeCodec) writtenBlocks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.written)
}

func (c *fakeCodec) disableCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	for _, enabled := range c.enableOutputCalls {
		if !enabled {
			n++
		}
	}
	return n
}

type fakeDisplay struct {
	mu            sync.Mutex
	statuses      []string
	emotions      []string
	notifications []string
	chatMessages  [][2]string
	icons         []string
}

func (d *fakeDisplay) SetStatus(status string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses = append(d.statuses, status)
}

func (d *fakeDisplay) SetEmotion(emotion string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emotions = append(d.emotions, emotion)
}

func (d *fakeDisplay) SetChatMessage(role, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.chatMessages = append(d.chatMessages, [2]string{role, text})
}

func (d *fakeDisplay) SetIcon(icon string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.icons = append(d.icons, icon)
}

func (d *fakeDisplay) ShowNotification(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifications = append(d.notifications, text)
}

func (d *fakeDisplay) notificationCount(text string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int
	for _, notification := range d.notifications {
		if notification == text {
			n++
		}
	}
	return n
}

func (d *fakeDisplay) lastStatus() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.statuses) == 0 {
		return ""
	}
	return d.statuses[len(d.statuses)-1]
}

type fakeLed struct {
	mu      sync.Mutex
	changes int
}

func (l *fakeLed) OnStateChanged() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes++
}

func (l *fakeLed) changeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.changes
}

type fakeBoard struct {
	codec   *fakeCodec
	display *fakeDisplay
	led     *fakeLed

	mu        sync.Mutex
	powerSave []bool
	rebooted  bool
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{
		codec:   newFakeCodec(),
		display: &fakeDisplay{},
		led:     &fakeLed{},
	}
}

func (b *fakeBoard) AudioCodec() board.AudioCodec { return b.codec }
func (b *fakeBoard) Display() board.Display       { return b.display }
func (b *fakeBoard) Led() board.Led               { return b.led }
func (b *fakeBoard) StartNetwork() error          { return nil }
func (b *fakeBoard) DeviceID() string             { return "00:11:22:33:44:55" }
func (b *fakeBoard) DescribeJSON() string         { return `{"board":"fake"}` }

func (b *fakeBoard) SetPowerSaveMode(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.powerSave = append(b.powerSave, on)
}

func (b *fakeBoard) Reboot() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rebooted = true
}

type fakeProtocol struct {
	mu sync.Mutex

	handler *protocol.Handler

	openErr error
	opened  bool

	serverRate int

	sentAudio      [][]byte
	startListening []protocol.ListeningMode
	stopListening  int
	aborts         []protocol.AbortReason
	wakeWords      []string
	iotDescriptors []string
	iotStates      []string
	channelsClosed int
}

func newFakeProtocol() *fakeProtocol {
	return &fakeProtocol{serverRate: 16000}
}

func (p *fakeProtocol) SetHandler(h *protocol.Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

func (p *fakeProtocol) getHandler() *protocol.Handler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handler
}

func (p *fakeProtocol) OpenAudioChannel(context.Context) error {
	p.mu.Lock()
	if p.openErr != nil {
		err := p.openErr
		p.mu.Unlock()
		return err
	}
	p.opened = true
	h := p.handler
	p.mu.Unlock()
	if h != nil && h.OnAudioChannelOpened != nil {
		h.OnAudioChannelOpened()
	}
	return nil
}

func (p *fakeProtocol) CloseAudioChannel() {
	p.mu.Lock()
	wasOpen := p.opened
	p.opened = false
	p.channelsClosed++
	h := p.handler
	p.mu.Unlock()
	if wasOpen && h != nil && h.OnAudioChannelClosed != nil {
		h.OnAudioChannelClosed()
	}
}

func (p *fakeProtocol) IsAudioChannelOpened() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}

func (p *fakeProtocol) SendAudio(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sentAudio = append(p.sentAudio, frame)
	return nil
}

func (p *fakeProtocol) SendStartListening(mode protocol.ListeningMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startListening = append(p.startListening, mode)
	return nil
}

func (p *fakeProtocol) SendStopListening() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopListening++
	return nil
}

func (p *fakeProtocol) SendAbortSpeaking(reason protocol.AbortReason) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.aborts = append(p.aborts, reason)
	return nil
}

func (p *fakeProtocol) SendWakeWordDetected(word string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wakeWords = append(p.wakeWords, word)
	return nil
}

func (p *fakeProtocol) SendIotDescriptors(descriptors string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.iotDescriptors = append(p.iotDescriptors, descriptors)
	return nil
}

func (p *fakeProtocol) SendIotStates(states string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.iotStates = append(p.iotStates, states)
	return nil
}

func (p *fakeProtocol) ServerSampleRate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.serverRate
}

func (p *fakeProtocol) Close() error { return nil }

func (p *fakeProtocol) startListeningModes() []protocol.ListeningMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]protocol.ListeningMode(nil), p.startListening...)
}

func (p *fakeProtocol) abortReasons() []protocol.AbortReason {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]protocol.AbortReason(nil), p.aborts...)
}

func (p *fakeProtocol) iotStateSends() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.iotStates...)
}
