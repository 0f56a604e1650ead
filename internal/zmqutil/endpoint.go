// Package zmqutil holds small helpers shared by every component that
// dials or binds a ZeroMQ endpoint: scheme detection, IPC path
// preparation, and interrupted-system-call classification.
package zmqutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const ipcPrefix = "ipc://"

// IsIPC reports whether address uses the ipc:// scheme.
func IsIPC(address string) bool {
	return strings.HasPrefix(address, ipcPrefix)
}

// PrepareIPCPath ensures every directory component of an ipc:// address
// exists. It does not touch the socket node itself: the messaging
// library creates that file when it binds.
func PrepareIPCPath(address string) error {
	if !IsIPC(address) {
		return nil
	}
	path := strings.TrimPrefix(address, ipcPrefix)
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating ipc directory %s", dir)
		}
	}
	return nil
}

// IsInterrupted reports whether err looks like an interrupted system
// call, the condition a blocking socket call returns when a process is
// signaled while parked in recv/poll. Components treat this as benign
// when the shutdown flag is also set.
func IsInterrupted(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(errors.Cause(err).Error(), "interrupted")
}
