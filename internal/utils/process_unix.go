//go:build !windows

package utils

import (
	"os/exec"
	"syscall"
)

// SetNewPG 设置进程属性，使子进程在父进程退出后继续运行
func SetNewPG(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// SetHiddenWindow is a no-op outside windows.
func SetHiddenWindow(cmd *exec.Cmd) {
	SetNewPG(cmd)
}
