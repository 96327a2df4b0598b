package coordinator

import "time"

// SelfDeleter removes the running installer binary once it is safe to do so.
type SelfDeleter interface {
	ScheduleSelfDelete(exePath string) error
}

// PlatformSelfDeleter delegates to the platform's ScheduleSelfDelete.
type PlatformSelfDeleter struct {
	Delay time.Duration
}

func (d PlatformSelfDeleter) ScheduleSelfDelete(exePath string) error {
	return ScheduleSelfDelete(exePath, d.Delay)
}
