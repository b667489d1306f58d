// Package systemd reports service state to systemd via sd_notify.
// Every call is a no-op when NOTIFY_SOCKET is unset.
package systemd

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

var sdNotify = daemon.SdNotify

func Ready() (bool, error) { return sdNotify(false, daemon.SdNotifyReady) }

func Stopping() (bool, error) { return sdNotify(false, daemon.SdNotifyStopping) }

func Reloading() (bool, error) { return sdNotify(false, daemon.SdNotifyReloading) }

// Watchdog pings the service watchdog.
func Watchdog() (bool, error) { return sdNotify(false, daemon.SdNotifyWatchdog) }

// Status sets the free-form status line shown by systemctl status.
func Status(msg string) (bool, error) { return sdNotify(false, "STATUS="+msg) }

// WatchdogInterval returns half the configured WatchdogSec, or 0 when the
// watchdog is disabled for this process.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0
	}
	return d / 2
}
