package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/voicepod/pkg/board"
	paboard "github.com/haivivi/voicepod/pkg/board/portaudio"
	"github.com/haivivi/voicepod/pkg/config"
	"github.com/haivivi/voicepod/pkg/iot"
	"github.com/haivivi/voicepod/pkg/ota"
	"github.com/haivivi/voicepod/pkg/protocol"
	"github.com/haivivi/voicepod/pkg/protocol/mqtt"
	"github.com/haivivi/voicepod/pkg/protocol/websocket"
	"github.com/haivivi/voicepod/pkg/voicepod"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the device core",
	RunE:  runDevice,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDevice(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrReset(configPath)
	if err != nil {
		return err
	}

	codec := paboard.New(paboard.Options{})
	host := &board.Host{Name: "voicepod-host", Version: version, Codec: codec}

	frameDuration := time.Duration(cfg.Audio.FrameDurationMs) * time.Millisecond
	clientParams := protocol.AudioParams{
		Format:        "opus",
		SampleRate:    16000,
		Channels:      1,
		FrameDuration: cfg.Audio.FrameDurationMs,
	}

	proto, err := newProtocol(cfg, host, clientParams)
	if err != nil {
		return err
	}

	things := iot.NewManager()
	if err := things.Register(&speakerThing{volume: 70}); err != nil {
		return err
	}

	var otaClient *ota.Client
	if cfg.OTA.VersionURL != "" {
		otaClient = ota.NewClient(version)
		otaClient.SetCheckVersionURL(cfg.OTA.VersionURL)
		otaClient.SetHeader("Device-Id", host.DeviceID())
	}

	prompts, err := loadPrompts(cfg.Prompts)
	if err != nil {
		return err
	}

	app, err := voicepod.New(voicepod.Options{
		Board:         host,
		Protocol:      proto,
		Things:        things,
		OTA:           otaClient,
		FrameDuration: frameDuration,
		Prompts:       prompts,
	})
	if err != nil {
		return err
	}
	if err := app.Start(); err != nil {
		return err
	}
	defer app.Close()

	fmt.Fprintln(cmd.OutOrStdout(), "voicepod running; press the chat key (enter) to talk, ctrl-c to quit")

	// Enter toggles the chat, mirroring the device's single button.
	go func() {
		var line string
		for {
			if _, err := fmt.Scanln(&line); err != nil && err.Error() != "unexpected newline" {
				return
			}
			app.ToggleChatState()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	return nil
}

func newProtocol(cfg *config.Config, host *board.Host, params protocol.AudioParams) (protocol.Protocol, error) {
	switch cfg.Transport {
	case config.TransportWebSocket:
		return websocket.New(websocket.Options{
			URL:               cfg.WebSocket.URL,
			Token:             cfg.WebSocket.Token,
			DeviceID:          host.DeviceID(),
			ClientAudioParams: params,
		}), nil
	case config.TransportMQTT:
		return mqtt.New(mqtt.Options{
			Broker:            cfg.MQTT.Broker,
			Username:          cfg.MQTT.Username,
			Password:          cfg.MQTT.Password,
			PublishTopic:      cfg.MQTT.PublishTopic,
			SubscribeTopic:    cfg.MQTT.SubscribeTopic,
			ClientAudioParams: params,
		}), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

func loadPrompts(paths map[string]string) (map[string][]byte, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	prompts := make(map[string][]byte, len(paths))
	for message, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load prompt %q: %w", message, err)
		}
		prompts[message] = data
	}
	return prompts, nil
}
