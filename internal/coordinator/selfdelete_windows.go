//go:build windows

package coordinator

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"costrict-updater/internal/logger"

	"golang.org/x/sys/windows"
)

/**
 * ScheduleSelfDelete 启动一个隐藏的cmd进程，延迟后删除安装器及其目录
 * @param {string} exePath - 安装器可执行文件
 * @param {time.Duration} delay - 删除前等待的时间，给安装器留出退出时间
 * @description
 * - 运行中的exe在windows上不能删除，只能由另一个进程在其退出后删除
 * - RMDIR不带/S，目录非空时保留
 */
func ScheduleSelfDelete(exePath string, delay time.Duration) error {
	comspec := os.Getenv("ComSpec")
	if comspec == "" {
		comspec = "cmd.exe"
	}
	pings := int(delay/time.Second) + 1
	cmdLine := fmt.Sprintf(`"%s" /C ping 127.0.0.1 -n %d >Nul & Del /F /Q "%s" & RMDIR /Q "%s"`,
		comspec, pings, exePath, filepath.Dir(exePath))

	cmd := exec.Command(comspec)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine:       cmdLine,
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW | windows.CREATE_NEW_PROCESS_GROUP,
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	logger.Infof("Scheduled removal of '%s' (PID: %d)", exePath, cmd.Process.Pid)
	return cmd.Process.Release()
}
