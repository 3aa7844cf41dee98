package board

import (
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"sync"
)

// Host is a Board for running the core on a general-purpose machine:
// a log-backed display, a no-op LED, and an injected audio codec. The
// network is assumed up.
type Host struct {
	Name    string
	Version string
	Codec   AudioCodec

	once     sync.Once
	deviceID string
}

var _ Board = (*Host)(nil)

// AudioCodec implements Board.
func (h *Host) AudioCodec() AudioCodec { return h.Codec }

// Display implements Board.
func (h *Host) Display() Display { return LogDisplay{} }

// Led implements Board.
func (h *Host) Led() Led { return NoopLed{} }

// StartNetwork implements Board. Host networking is managed by the OS.
func (h *Host) StartNetwork() error { return nil }

// SetPowerSaveMode implements Board. Hosts have no power-save mode.
func (h *Host) SetPowerSaveMode(bool) {}

// DeviceID implements Board, returning the first hardware MAC address,
// or the hostname when none is available.
func (h *Host) DeviceID() string {
	h.once.Do(func() {
		ifaces, err := net.Interfaces()
		if err == nil {
			for _, iface := range ifaces {
				if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
					continue
				}
				h.deviceID = iface.HardwareAddr.String()
				return
			}
		}
		name, _ := os.Hostname()
		h.deviceID = name
	})
	return h.deviceID
}

// DescribeJSON implements Board.
func (h *Host) DescribeJSON() string {
	b, _ := json.Marshal(map[string]string{
		"board":   h.Name,
		"version": h.Version,
		"mac":     h.DeviceID(),
	})
	return string(b)
}

// Reboot implements Board by exiting; the process supervisor restarts
// the service.
func (h *Host) Reboot() {
	slog.Info("board: rebooting")
	os.Exit(0)
}

// LogDisplay renders display updates into the log.
type LogDisplay struct{}

func (LogDisplay) SetStatus(status string)   { slog.Info("display: status", "status", status) }
func (LogDisplay) SetEmotion(emotion string) { slog.Info("display: emotion", "emotion", emotion) }
func (LogDisplay) SetIcon(icon string)       { slog.Info("display: icon", "icon", icon) }

func (LogDisplay) SetChatMessage(role, text string) {
	slog.Info("display: chat", "role", role, "text", text)
}

func (LogDisplay) ShowNotification(text string) {
	slog.Warn("display: notification", "text", text)
}

// NoopLed is a Led for hardware without one.
type NoopLed struct{}

func (NoopLed) OnStateChanged() {}
