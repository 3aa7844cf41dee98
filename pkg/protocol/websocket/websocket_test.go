package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/voicepod/pkg/protocol"
)

var upgrader = websocket.Upgrader{}

// fakeServer upgrades one connection, answers the hello, and forwards
// everything it receives to received.
func fakeServer(t *testing.T, received chan<- []byte, serverRate int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var hello protocol.HelloMessage
		if err := json.Unmarshal(data, &hello); err != nil || hello.Type != "hello" {
			t.Errorf("bad client hello: %s", data)
			return
		}
		conn.WriteJSON(&protocol.HelloMessage{
			Type:      "hello",
			Transport: "websocket",
			SessionID: "sess-1",
			AudioParams: protocol.AudioParams{
				Format:     "opus",
				SampleRate: serverRate,
				Channels:   1,
			},
		})
		conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3})
		conn.WriteJSON(&protocol.ServerMessage{Type: "tts", State: "start"})

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- data
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestProtocol_OpenAndTraffic(t *testing.T) {
	received := make(chan []byte, 10)
	server := fakeServer(t, received, 24000)
	defer server.Close()

	audio := make(chan []byte, 1)
	messages := make(chan *protocol.ServerMessage, 1)

	p := New(Options{
		URL:      wsURL(server),
		DeviceID: "00:11:22:33:44:55",
		ClientAudioParams: protocol.AudioParams{
			Format: "opus", SampleRate: 16000, Channels: 1, FrameDuration: 60,
		},
	})
	p.SetHandler(&protocol.Handler{
		OnIncomingAudio:   func(frame []byte) { audio <- frame },
		OnIncomingMessage: func(msg *protocol.ServerMessage) { messages <- msg },
	})

	if err := p.OpenAudioChannel(context.Background()); err != nil {
		t.Fatalf("OpenAudioChannel: %v", err)
	}
	defer p.Close()

	if !p.IsAudioChannelOpened() {
		t.Fatal("channel not reported open")
	}
	if got := p.ServerSampleRate(); got != 24000 {
		t.Errorf("ServerSampleRate = %d; want 24000", got)
	}

	select {
	case frame := <-audio:
		if len(frame) != 3 {
			t.Errorf("audio frame = %v", frame)
		}
	case <-time.After(time.Second):
		t.Fatal("no audio frame delivered")
	}

	select {
	case msg := <-messages:
		if msg.Type != "tts" || msg.State != "start" {
			t.Errorf("message = %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no control message delivered")
	}

	if err := p.SendStartListening(protocol.ListeningAutoStop); err != nil {
		t.Fatalf("SendStartListening: %v", err)
	}
	select {
	case data := <-received:
		var listen protocol.ListenMessage
		if err := json.Unmarshal(data, &listen); err != nil {
			t.Fatalf("server received %s: %v", data, err)
		}
		if listen.Type != "listen" || listen.State != "start" || listen.Mode != "auto" {
			t.Errorf("listen = %+v", listen)
		}
		if listen.SessionID != "sess-1" {
			t.Errorf("session = %q; want sess-1", listen.SessionID)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not receive listen message")
	}

	if err := p.SendAudio([]byte{9, 9}); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}
	select {
	case data := <-received:
		if len(data) != 2 {
			t.Errorf("server received audio %v", data)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not receive audio")
	}
}

func TestProtocol_OpenFailure(t *testing.T) {
	p := New(Options{URL: "ws://127.0.0.1:1/nope"})
	p.SetHandler(&protocol.Handler{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.OpenAudioChannel(ctx); err == nil {
		t.Fatal("want dial error")
	}
	if p.IsAudioChannelOpened() {
		t.Fatal("channel reported open after failure")
	}
}

func TestProtocol_ClosedChannelSends(t *testing.T) {
	p := New(Options{URL: "ws://example.invalid"})
	if err := p.SendAudio([]byte{1}); err == nil {
		t.Fatal("want error sending on a closed channel")
	}
	if err := p.SendStopListening(); err == nil {
		t.Fatal("want error sending on a closed channel")
	}
}

func TestProtocol_ServerClose(t *testing.T) {
	closed := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.ReadMessage() // client hello
		conn.WriteJSON(&protocol.HelloMessage{
			Type:        "hello",
			AudioParams: protocol.AudioParams{SampleRate: 16000},
		})
		conn.Close()
	}))
	defer server.Close()

	p := New(Options{URL: wsURL(server)})
	p.SetHandler(&protocol.Handler{
		OnAudioChannelClosed: func() { closed <- struct{}{} },
	})
	if err := p.OpenAudioChannel(context.Background()); err != nil {
		t.Fatalf("OpenAudioChannel: %v", err)
	}

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("OnAudioChannelClosed not fired after server close")
	}
	if p.IsAudioChannelOpened() {
		t.Fatal("channel still reported open")
	}
}
