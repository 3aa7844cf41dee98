// Package mqtt implements the transport contract over an MQTT broker.
// Control JSON travels on a topic pair; opus audio rides a parallel
// "/audio" topic so frames never pass through the JSON codec. A hello
// exchange opens each session and fixes the server sample rate.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/haivivi/voicepod/pkg/protocol"
)

const (
	connectTimeout = 10 * time.Second
	helloTimeout   = 10 * time.Second
	publishTimeout = 5 * time.Second

	audioSuffix = "/audio"
)

// Options configures a Protocol.
type Options struct {
	// Broker is the MQTT endpoint, e.g. "tcp://broker:1883".
	Broker string

	Username string
	Password string

	// ClientID defaults to a random UUID.
	ClientID string

	// PublishTopic carries device-to-server messages; the server answers
	// on SubscribeTopic.
	PublishTopic   string
	SubscribeTopic string

	// ClientAudioParams describes the audio the device sends.
	ClientAudioParams protocol.AudioParams
}

// Protocol is the MQTT transport. Safe for concurrent use.
type Protocol struct {
	opts    Options
	handler *protocol.Handler

	mu         sync.Mutex
	client     pahomqtt.Client
	sessionID  string
	serverRate int
	opened     bool
	hello      chan *protocol.HelloMessage
}

var _ protocol.Protocol = (*Protocol)(nil)

// New creates an MQTT transport. The broker connection is established
// by OpenAudioChannel, not here.
func New(opts Options) *Protocol {
	if opts.ClientID == "" {
		opts.ClientID = uuid.NewString()
	}
	return &Protocol{opts: opts, serverRate: opts.ClientAudioParams.SampleRate}
}

// SetHandler implements protocol.Protocol.
func (p *Protocol) SetHandler(h *protocol.Handler) {
	p.handler = h
}

// OpenAudioChannel connects to the broker, subscribes to the server
// topics, and performs the hello exchange.
func (p *Protocol) OpenAudioChannel(ctx context.Context) error {
	p.mu.Lock()
	if p.opened {
		p.mu.Unlock()
		return nil
	}
	hello := make(chan *protocol.HelloMessage, 1)
	p.hello = hello
	p.mu.Unlock()

	client, err := p.connect()
	if err != nil {
		return err
	}

	helloMsg := &protocol.HelloMessage{
		Type:        "hello",
		Version:     1,
		Transport:   "mqtt",
		AudioParams: p.opts.ClientAudioParams,
	}
	if err := p.publishJSON(client, p.opts.PublishTopic, helloMsg); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("mqtt: send hello: %w", err)
	}

	select {
	case <-ctx.Done():
		client.Disconnect(0)
		return fmt.Errorf("mqtt: handshake: %w", ctx.Err())
	case <-time.After(helloTimeout):
		client.Disconnect(0)
		return fmt.Errorf("mqtt: handshake: no server hello within %v", helloTimeout)
	case serverHello := <-hello:
		p.mu.Lock()
		p.client = client
		p.opened = true
		p.sessionID = serverHello.SessionID
		if serverHello.AudioParams.SampleRate > 0 {
			p.serverRate = serverHello.AudioParams.SampleRate
		}
		p.mu.Unlock()
	}

	if h := p.handler; h != nil && h.OnAudioChannelOpened != nil {
		h.OnAudioChannelOpened()
	}
	return nil
}

func (p *Protocol) connect() (pahomqtt.Client, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(p.opts.Broker)
	opts.SetClientID(p.opts.ClientID)
	opts.SetUsername(p.opts.Username)
	opts.SetPassword(p.opts.Password)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetAutoReconnect(false)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		p.onConnectionLost(err)
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt: connect %s: timeout", p.opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", p.opts.Broker, err)
	}

	if err := p.subscribe(client, p.opts.SubscribeTopic, p.onControlMessage); err != nil {
		client.Disconnect(0)
		return nil, err
	}
	if err := p.subscribe(client, p.opts.SubscribeTopic+audioSuffix, p.onAudioMessage); err != nil {
		client.Disconnect(0)
		return nil, err
	}
	return client, nil
}

func (p *Protocol) subscribe(client pahomqtt.Client, topic string, fn pahomqtt.MessageHandler) error {
	token := client.Subscribe(topic, 0, fn)
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt: subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", topic, err)
	}
	return nil
}

func (p *Protocol) onControlMessage(_ pahomqtt.Client, m pahomqtt.Message) {
	var msg protocol.ServerMessage
	if err := json.Unmarshal(m.Payload(), &msg); err != nil {
		return
	}

	switch msg.Type {
	case "hello":
		var hello protocol.HelloMessage
		if err := json.Unmarshal(m.Payload(), &hello); err != nil {
			return
		}
		p.mu.Lock()
		ch := p.hello
		p.mu.Unlock()
		if ch != nil {
			select {
			case ch <- &hello:
			default:
			}
		}
	case "goodbye":
		p.closeSession(nil)
	default:
		if h := p.handler; h != nil && h.OnIncomingMessage != nil {
			h.OnIncomingMessage(&msg)
		}
	}
}

func (p *Protocol) onAudioMessage(_ pahomqtt.Client, m pahomqtt.Message) {
	if h := p.handler; h != nil && h.OnIncomingAudio != nil {
		h.OnIncomingAudio(m.Payload())
	}
}

func (p *Protocol) onConnectionLost(err error) {
	h := p.handler
	if err != nil && h != nil && h.OnNetworkError != nil {
		h.OnNetworkError(err.Error())
	}
	p.closeSession(err)
}

// closeSession marks the channel closed and disconnects. The closed
// callback fires once per session.
func (p *Protocol) closeSession(_ error) {
	p.mu.Lock()
	if !p.opened {
		p.mu.Unlock()
		return
	}
	p.opened = false
	client := p.client
	p.client = nil
	p.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
	if h := p.handler; h != nil && h.OnAudioChannelClosed != nil {
		h.OnAudioChannelClosed()
	}
}

// CloseAudioChannel implements protocol.Protocol.
func (p *Protocol) CloseAudioChannel() {
	p.mu.Lock()
	client := p.client
	sessionID := p.sessionID
	p.mu.Unlock()
	if client != nil {
		p.publishJSON(client, p.opts.PublishTopic, &protocol.GoodbyeMessage{
			Type:      "goodbye",
			SessionID: sessionID,
		})
	}
	p.closeSession(nil)
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
	client := p.client
	p.mu.Unlock()
	if client == nil {
		return fmt.Errorf("mqtt: audio channel not open")
	}
	token := client.Publish(p.opts.PublishTopic+audioSuffix, 0, false, frame)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt: send audio: timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: send audio: %w", err)
	}
	return nil
}

// SendStartListening implements protocol.Protocol.
func (p *Protocol) SendStartListening(mode protocol.ListeningMode) error {
	return p.send(protocol.NewListenMessage(p.session(), "start", mode))
}

// SendStopListening implements protocol.Protocol.
func (p *Protocol) SendStopListening() error {
	return p.send(protocol.NewListenMessage(p.session(), "stop", 0))
}

// SendAbortSpeaking implements protocol.Protocol.
func (p *Protocol) SendAbortSpeaking(reason protocol.AbortReason) error {
	return p.send(protocol.NewAbortMessage(p.session(), reason))
}

// SendWakeWordDetected implements protocol.Protocol.
func (p *Protocol) SendWakeWordDetected(word string) error {
	msg := protocol.NewListenMessage(p.session(), "detect", 0)
	msg.Text = word
	return p.send(msg)
}

// SendIotDescriptors implements protocol.Protocol.
func (p *Protocol) SendIotDescriptors(descriptors string) error {
	return p.send(&protocol.IotMessage{
		Type:        "iot",
		SessionID:   p.session(),
		Descriptors: json.RawMessage(descriptors),
	})
}

// SendIotStates implements protocol.Protocol.
func (p *Protocol) SendIotStates(states string) error {
	return p.send(&protocol.IotMessage{
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

func (p *Protocol) send(v any) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil {
		return fmt.Errorf("mqtt: audio channel not open")
	}
	return p.publishJSON(client, p.opts.PublishTopic, v)
}

func (p *Protocol) publishJSON(client pahomqtt.Client, topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("mqtt: marshal: %w", err)
	}
	token := client.Publish(topic, 0, false, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt: publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return nil
}
