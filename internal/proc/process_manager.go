package proc

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"costrict-updater/internal/logger"
	"costrict-updater/internal/utils"
)

/**
 * ProcessInstance 一个脱离当前进程运行的子进程
 * @property {string} Title - 进程标题，用于日志
 * @property {string} Command - 执行命令
 * @property {[]string} Args - 命令参数
 * @property {string} WorkDir - 工作目录
 * @property {bool} Hidden - windows下不创建控制台窗口
 * @property {int} Pid - 启动后的进程ID
 * @property {time.Time} StartTime - 启动时间
 */
type ProcessInstance struct {
	Title     string
	Command   string
	Args      []string
	WorkDir   string
	Hidden    bool
	Pid       int
	StartTime time.Time
}

/**
 * NewProcessInstance 创建新的进程实例
 * @param {string} title - 进程标题
 * @param {string} command - 执行命令
 * @param {[]string} args - 命令参数
 * @returns {ProcessInstance} 返回创建的进程实例
 */
func NewProcessInstance(title, command string, args []string) *ProcessInstance {
	return &ProcessInstance{
		Title:   title,
		Command: command,
		Args:    args,
	}
}

/**
 * StartDetached 启动进程并放弃对它的所有权
 * @returns {error} 启动失败的错误
 * @description
 * - 子进程放入新的进程组，当前进程退出后继续运行
 * - 不等待子进程，也不收集它的退出码
 */
func (pi *ProcessInstance) StartDetached() error {
	logger.Infof("Executing command: %s %s", pi.Command, strings.Join(pi.Args, " "))

	cmd := exec.Command(pi.Command, pi.Args...)
	if pi.WorkDir != "" {
		cmd.Dir = pi.WorkDir
	}
	if pi.Hidden {
		utils.SetHiddenWindow(cmd)
	} else {
		utils.SetNewPG(cmd)
	}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		logger.Errorf("Failed to start process '%s', error: %v", pi.Title, err)
		return fmt.Errorf("start '%s': %w", pi.Command, err)
	}
	pi.Pid = cmd.Process.Pid
	pi.StartTime = time.Now()
	logger.Infof("Process '%s' started (PID: %d)", pi.Title, pi.Pid)

	if err := cmd.Process.Release(); err != nil {
		logger.Warnf("Failed to release process '%s': %v", pi.Title, err)
	}
	return nil
}

// Launcher starts a program detached from the caller.
type Launcher interface {
	Launch(title, command string, args []string, workDir string) (int, error)
}

// DetachedLauncher is the Launcher backed by ProcessInstance.StartDetached.
type DetachedLauncher struct{}

func (DetachedLauncher) Launch(title, command string, args []string, workDir string) (int, error) {
	pi := NewProcessInstance(title, command, args)
	pi.WorkDir = workDir
	if err := pi.StartDetached(); err != nil {
		return 0, err
	}
	return pi.Pid, nil
}

// MakeExecutable adds execute permission wherever read permission is set.
func MakeExecutable(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := fi.Mode().Perm()
	mode |= (mode & 0444) >> 2
	return os.Chmod(path, mode)
}
