// Package websocket implements the transport contract over a single
// bidirectional websocket: binary frames carry opus audio, text frames
// carry control JSON. A hello exchange opens each session and fixes the
// server sample rate.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haivivi/voicepod/pkg/protocol"
)

const (
	protocolVersion = 1

	// helloTimeout bounds the wait for the server hello after dialing.
	helloTimeout = 10 * time.Second

	writeTimeout = 10 * time.Second
)

// Options configures a Protocol.
type Options struct {
	// URL is the websocket endpoint (ws:// or wss://).
	URL string

	// Token is sent as a bearer token, when set.
	Token string

	// DeviceID identifies this device to the server.
	DeviceID string

	// ClientAudioParams describes the audio the device sends.
	ClientAudioParams protocol.AudioParams

	// Dialer overrides the websocket dialer. Defaults to
	// websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Protocol is the websocket transport. Safe for concurrent use.
type Protocol struct {
	opts    Options
	handler *protocol.Handler

	mu         sync.Mutex
	conn       *websocket.Conn
	sessionID  string
	serverRate int
	opened     bool
}

var _ protocol.Protocol = (*Protocol)(nil)

// New creates a websocket transport. The connection is established by
// OpenAudioChannel, not here.
func New(opts Options) *Protocol {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Protocol{opts: opts, serverRate: opts.ClientAudioParams.SampleRate}
}

// SetHandler implements protocol.Protocol.
func (p *Protocol) SetHandler(h *protocol.Handler) {
	p.handler = h
}

// OpenAudioChannel dials the endpoint, performs the hello exchange, and
// starts the read loop.
func (p *Protocol) OpenAudioChannel(ctx context.Context) error {
	p.mu.Lock()
	if p.opened {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	header := http.Header{}
	header.Set("Protocol-Version", fmt.Sprint(protocolVersion))
	header.Set("Device-Id", p.opts.DeviceID)
	if p.opts.Token != "" {
		header.Set("Authorization", "Bearer "+p.opts.Token)
	}

	conn, _, err := p.opts.Dialer.DialContext(ctx, p.opts.URL, header)
	if err != nil {
		return fmt.Errorf("websocket: dial %s: %w", p.opts.URL, err)
	}

	hello := &protocol.HelloMessage{
		Type:        "hello",
		Version:     protocolVersion,
		Transport:   "websocket",
		AudioParams: p.opts.ClientAudioParams,
	}
	if err := writeJSONDeadline(conn, hello); err != nil {
		conn.Close()
		return fmt.Errorf("websocket: send hello: %w", err)
	}

	serverHello, err := readHello(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("websocket: handshake: %w", err)
	}

	p.mu.Lock()
	p.conn = conn
	p.opened = true
	p.sessionID = serverHello.SessionID
	if p.sessionID == "" {
		p.sessionID = uuid.NewString()
	}
	if serverHello.AudioParams.SampleRate > 0 {
		p.serverRate = serverHello.AudioParams.SampleRate
	}
	p.mu.Unlock()

	go p.readLoop(conn)

	if h := p.handler; h != nil && h.OnAudioChannelOpened != nil {
		h.OnAudioChannelOpened()
	}
	return nil
}

func readHello(conn *websocket.Conn) (*protocol.HelloMessage, error) {
	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	defer conn.SetReadDeadline(time.Time{})

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind != websocket.TextMessage {
			// Audio before the handshake completes is meaningless; drop it.
			continue
		}
		var hello protocol.HelloMessage
		if err := json.Unmarshal(data, &hello); err != nil {
			return nil, fmt.Errorf("bad hello: %w", err)
		}
		if hello.Type != "hello" {
			return nil, fmt.Errorf("expected hello, got %q", hello.Type)
		}
		return &hello, nil
	}
}

func (p *Protocol) readLoop(conn *websocket.Conn) {
	h := p.handler
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			p.teardown(conn, err)
			return
		}
		switch kind {
		case websocket.BinaryMessage:
			if h != nil && h.OnIncomingAudio != nil {
				h.OnIncomingAudio(data)
			}
		case websocket.TextMessage:
			var msg protocol.ServerMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			if h != nil && h.OnIncomingMessage != nil {
				h.OnIncomingMessage(&msg)
			}
		}
	}
}

// teardown closes the session after a read failure or a local close.
func (p *Protocol) teardown(conn *websocket.Conn, err error) {
	p.mu.Lock()
	current := p.conn == conn
	if current {
		p.conn = nil
		p.opened = false
	}
	p.mu.Unlock()
	if !current {
		return
	}
	conn.Close()

	h := p.handler
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		if h != nil && h.OnNetworkError != nil {
			h.OnNetworkError(err.Error())
		}
	}
	if h != nil && h.OnAudioChannelClosed != nil {
		h.OnAudioChannelClosed()
	}
}

// CloseAudioChannel implements protocol.Protocol.
func (p *Protocol) CloseAudioChannel() {
	p.mu.Lock()
	conn := p.conn
	if conn != nil {
		writeJSONDeadline(conn, &protocol.GoodbyeMessage{Type: "goodbye", SessionID: p.sessionID})
	}
	p.mu.Unlock()
	if conn == nil {
		return
	}
	// The read loop observes the close and fires OnAudioChannelClosed.
	conn.Close()
}

// IsAudioChannelOpened implements protocol.Protocol.
func (p *Protocol) IsAudioChannelOpened() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}

// SendAudio implements protocol.Protocol.
func (p *Protocol) SendAudio(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return fmt.Errorf("websocket: audio channel not open")
	}
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := p.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("websocket: send audio: %w", err)
	}
	return nil
}

// SendStartListening implements protocol.Protocol.
func (p *Protocol) SendStartListening(mode protocol.ListeningMode) error {
	return p.sendJSON(protocol.NewListenMessage(p.session(), "start", mode))
}

// SendStopListening implements protocol.Protocol.
func (p *Protocol) SendStopListening() error {
	return p.sendJSON(protocol.NewListenMessage(p.session(), "stop", 0))
}

// SendAbortSpeaking implements protocol.Protocol.
func (p *Protocol) SendAbortSpeaking(reason protocol.AbortReason) error {
	return p.sendJSON(protocol.NewAbortMessage(p.session(), reason))
}

// SendWakeWordDetected implements protocol.Protocol.
func (p *Protocol) SendWakeWordDetected(word string) error {
	msg := protocol.NewListenMessage(p.session(), "detect", 0)
	msg.Text = word
	return p.sendJSON(msg)
}

// SendIotDescriptors implements protocol.Protocol.
func (p *Protocol) SendIotDescriptors(descriptors string) error {
	return p.sendJSON(&protocol.IotMessage{
		Type:        "iot",
		SessionID:   p.session(),
		Descriptors: json.RawMessage(descriptors),
	})
}

// SendIotStates implements protocol.Protocol.
func (p *Protocol) SendIotStates(states string) error {
	return p.sendJSON(&protocol.IotMessage{
		Type:      "iot",
		SessionID: p.session(),
		States:    json.RawMessage(states),
	})
}

// ServerSampleRate implements protocol.Protocol.
func (p *Protocol) ServerSampleRate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.serverRate
}

// Close implements protocol.Protocol.
func (p *Protocol) Close() error {
	p.CloseAudioChannel()
	return nil
}

func (p *Protocol) session() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

func (p *Protocol) sendJSON(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return fmt.Errorf("websocket: audio channel not open")
	}
	if err := writeJSONDeadline(p.conn, v); err != nil {
		return fmt.Errorf("websocket: send: %w", err)
	}
	return nil
}

func writeJSONDeadline(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}
