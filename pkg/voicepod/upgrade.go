package voicepod

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	// versionPollInterval is how often the version check retries until
	// the update service answers.
	versionPollInterval = 60 * time.Second

	// idlePollInterval is how often the upgrade path re-checks that the
	// device has gone idle.
	idlePollInterval = 3 * time.Second
)

// checkNewVersion polls the update service until a check succeeds, then
// either schedules the upgrade (once the device is idle) or confirms
// the running version. Runs on its own goroutine.
func (a *Application) checkNewVersion() {
	display := a.board.Display()
	a.ota.SetPostData(a.board.DescribeJSON())

	for {
		err := a.ota.CheckVersion(context.Background())
		if err == nil {
			break
		}
		a.log.WarnPrintf("check version: %v", err)
		if !a.sleepDone(versionPollInterval) {
			return
		}
	}

	if !a.ota.HasNewVersion() {
		a.ota.MarkCurrentVersionValid()
		display.ShowNotification("版本 " + a.ota.GetCurrentVersion())
		return
	}

	// Wait for the chat to go idle before interrupting with an upgrade.
	for a.DeviceState() != StateIdle {
		if !a.sleepDone(idlePollInterval) {
			return
		}
	}

	// The upgrade runs on the main loop and is not cancelable.
	a.Schedule(func() { a.upgrade() })
}

// upgrade downloads new firmware into a temporary file and reboots the
// board. On failure the device shows the error for 3 s and reboots
// anyway. The downloaded image is not flashed or passed to the board
// here. Main loop only.
func (a *Application) upgrade() {
	display := a.board.Display()

	a.setDeviceState(StateUpgrading)
	display.SetIcon("download")
	display.SetStatus("新版本 " + a.ota.GetFirmwareVersion())

	// No audio during the upgrade.
	a.codec.EnableOutput(false)
	a.mu.Lock()
	a.decodeQueue = nil
	a.outputEnabled = false
	a.mu.Unlock()
	a.bg.Close()
	a.bg.WaitForCompletion()

	err := a.withFirmwareFile(func(w io.Writer) error {
		return a.ota.StartUpgrade(context.Background(), w, func(percent, speed int) {
			display.SetStatus(fmt.Sprintf("%d%% %dKB/s", percent, speed/1024))
		})
	})
	if err == nil {
		// Reboot does not return; the staged file path is not passed to it.
		a.board.Reboot()
		return
	}

	display.SetStatus(statusUpgradeFail)
	a.log.ErrorPrintf("firmware upgrade failed: %v", err)
	a.sleep(3 * time.Second)
	a.board.Reboot()
}

// withFirmwareFile stages the download in a temporary file so a failed
// transfer never leaves a partial image behind.
func (a *Application) withFirmwareFile(download func(io.Writer) error) error {
	f, err := os.CreateTemp("", "voicepod-firmware-*.bin")
	if err != nil {
		return a.log.Errorf("stage firmware: %w", err)
	}
	defer f.Close()

	if err := download(f); err != nil {
		os.Remove(f.Name())
		return err
	}
	return nil
}

// sleepDone pauses, returning false when the application is closing.
func (a *Application) sleepDone(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-a.done:
		return false
	}
}
