//go:build !windows

package coordinator

import (
	"os"
	"path/filepath"
	"time"

	"costrict-updater/internal/logger"
)

// ScheduleSelfDelete unlinks exePath immediately, a running binary may be
// unlinked on posix systems. The containing directory is removed when empty.
func ScheduleSelfDelete(exePath string, _ time.Duration) error {
	if err := os.Remove(exePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	dir := filepath.Dir(exePath)
	if err := os.Remove(dir); err != nil {
		logger.Debugf("Keep installer directory '%s': %v", dir, err)
	}
	return nil
}
