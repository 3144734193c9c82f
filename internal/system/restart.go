// Package system wraps the platform calls the bridge needs for the remote
// reset command.
package system

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Restarter triggers a device restart. Restart does not return on success;
// callers must treat it as a terminal action.
type Restarter interface {
	Restart() error
}

// LinuxRestarter reboots the machine through the kernel.
type LinuxRestarter struct {
	Logger *logrus.Entry
}

// NewLinuxRestarter returns a Restarter for the local machine.
func NewLinuxRestarter(logger *logrus.Logger) *LinuxRestarter {
	return &LinuxRestarter{Logger: logger.WithField("component", "system")}
}

// Restart flushes filesystem buffers and restarts the device.
func (r *LinuxRestarter) Restart() error {
	r.Logger.Warn("Restarting device")
	unix.Sync()
	return unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART)
}
