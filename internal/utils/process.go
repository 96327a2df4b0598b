package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

/**
 * Check whether a process is alive
 * @param {int} pid - Process ID
 * @returns {bool} false when the process is gone or a zombie
 * @returns {error} Error if the process table cannot be queried
 */
func IsProcessRunning(pid int) (bool, error) {
	exists, err := process.PidExists(int32(pid))
	if err != nil || !exists {
		return false, err
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return false, nil
		}
		return false, err
	}
	// 已退出但未被回收的进程视为不在运行
	if status, err := p.Status(); err == nil {
		for _, s := range status {
			if s == process.Zombie {
				return false, nil
			}
		}
	}
	return true, nil
}

// GetProcessName 根据PID获取进程名
func GetProcessName(pid int) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", fmt.Errorf("failed to find process with PID %d: %w", pid, err)
	}
	return p.Name()
}

// KillProcessByPID 根据PID强制杀死进程
func KillProcessByPID(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil
		}
		return fmt.Errorf("failed to find process with PID %d: %w", pid, err)
	}
	if err := p.Kill(); err != nil {
		return fmt.Errorf("failed to kill process with PID %d: %w", pid, err)
	}
	return nil
}

/**
 * Wait until a process exits
 * @param {context.Context} ctx - Deadline for the wait
 * @param {int} pid - Process ID
 * @param {time.Duration} interval - Polling interval
 * @returns {error} nil once the process is gone, ctx.Err() on timeout
 */
func WaitProcessExit(ctx context.Context, pid int, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		running, err := IsProcessRunning(pid)
		if err == nil && !running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
