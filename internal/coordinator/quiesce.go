package coordinator

import (
	"context"
	"fmt"
	"os"
	"time"

	"costrict-updater/internal/logger"
	"costrict-updater/internal/utils"
)

// CallerQuiescence makes sure the process that launched the installer is gone.
type CallerQuiescence interface {
	Quiesce(ctx context.Context, pid int) error
}

/**
 * ProcessQuiescence 等待调用方进程退出
 * @property {time.Duration} Timeout - 等待超时
 * @property {bool} ForceKill - 超时后是否强制杀死
 * @property {time.Duration} Interval - 轮询间隔，默认100ms
 */
type ProcessQuiescence struct {
	Timeout   time.Duration
	ForceKill bool
	Interval  time.Duration
}

const killWait = 5 * time.Second

func (q *ProcessQuiescence) Quiesce(ctx context.Context, pid int) error {
	if pid <= 0 || pid == os.Getpid() {
		return nil
	}
	interval := q.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	name, nerr := utils.GetProcessName(pid)
	if nerr != nil {
		name = "unknown"
	}
	logger.Infof("Waiting for caller '%s' (PID: %d) to exit", name, pid)
	waitCtx, cancel := context.WithTimeout(ctx, q.Timeout)
	err := utils.WaitProcessExit(waitCtx, pid, interval)
	cancel()
	if err == nil {
		logger.Infof("Caller '%s' (PID: %d) exited", name, pid)
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !q.ForceKill {
		return fmt.Errorf("process %d still running after %s", pid, q.Timeout)
	}

	// PID可能已被其他进程复用
	if nerr == nil {
		if current, err := utils.GetProcessName(pid); err == nil && current != name {
			logger.Infof("PID %d now belongs to '%s', caller '%s' already exited", pid, current, name)
			return nil
		}
	}
	logger.Warnf("Caller '%s' (PID: %d) still running after %s, killing it", name, pid, q.Timeout)
	if err := utils.KillProcessByPID(pid); err != nil {
		return err
	}
	killCtx, cancel := context.WithTimeout(ctx, killWait)
	defer cancel()
	if err := utils.WaitProcessExit(killCtx, pid, interval); err != nil {
		return fmt.Errorf("process %d still running after kill: %w", pid, err)
	}
	return nil
}
