// Package coordinator runs the installer side of a self-update: it waits for
// the application that spawned it, swaps the installation, removes itself and
// starts the new version.
package coordinator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"costrict-updater/internal/config"
	"costrict-updater/internal/installctx"
	"costrict-updater/internal/installer"
	"costrict-updater/internal/logger"
	"costrict-updater/internal/models"
	"costrict-updater/internal/proc"
	"costrict-updater/internal/result"
)

type Phase string

const (
	PhaseStart               Phase = "start"
	PhasePositionChecked     Phase = "position_checked"
	PhaseCallerQuiesced      Phase = "caller_quiesced"
	PhaseInstalled           Phase = "installed"
	PhaseSourceCleaned       Phase = "source_cleaned"
	PhaseSelfDeleteScheduled Phase = "self_delete_scheduled"
	PhaseRelaunched          Phase = "relaunched"
)

// Installer applies a package to a target directory.
type Installer interface {
	InstallZipPackage(ctx context.Context, packageFile, target string) error
}

/**
 * Report 一次安装流程的结果
 * @property {Phase} Phase - 最后完成的阶段
 * @property {bool} Installed - 新版本文件已就位
 * @property {int} Pid - 新版本进程ID，未启动时为0
 */
type Report struct {
	Phase     Phase
	Installed bool
	Pid       int
}

type Coordinator struct {
	cfg         config.UpdaterConfig
	installer   Installer
	quiescence  CallerQuiescence
	selfDeleter SelfDeleter
	launcher    proc.Launcher
	executable  func() (string, error)
	version     string
}

type Option func(*Coordinator)

func WithInstaller(i Installer) Option {
	return func(c *Coordinator) { c.installer = i }
}

func WithQuiescence(q CallerQuiescence) Option {
	return func(c *Coordinator) { c.quiescence = q }
}

func WithSelfDeleter(d SelfDeleter) Option {
	return func(c *Coordinator) { c.selfDeleter = d }
}

func WithLauncher(l proc.Launcher) Option {
	return func(c *Coordinator) { c.launcher = l }
}

// WithExecutable overrides how the installer finds its own binary.
func WithExecutable(fn func() (string, error)) Option {
	return func(c *Coordinator) { c.executable = fn }
}

// WithVersion records the version being installed in the result file.
func WithVersion(v string) Option {
	return func(c *Coordinator) { c.version = v }
}

func New(cfg config.UpdaterConfig, opts ...Option) *Coordinator {
	cfg.Correct()
	c := &Coordinator{
		cfg:        cfg,
		installer:  installer.New(cfg),
		quiescence: &ProcessQuiescence{Timeout: cfg.WaitTimeout, ForceKill: cfg.ForceKill},
		selfDeleter: PlatformSelfDeleter{
			Delay: cfg.SelfDeleteDelay,
		},
		launcher:   proc.DetachedLauncher{},
		executable: os.Executable,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

/**
 * Run the installer flow for an install context
 * @param {context.Context} ctx - Bounds the caller wait and the eviction retries
 * @param {installctx.InstallContext} ic - Parsed installer arguments
 * @returns {Report} Last phase reached, Installed is true once files are in place
 * @returns {error} Typed error, see models.Err*
 * @description
 * - Refuses to run from inside the target directory
 * - Waits for ic.WaitPid to exit, killing it after the configured timeout
 * - Only zip packages are dispatched to the installer
 * - Source removal and self-delete failures are logged, not returned
 * - A relaunch failure returns ErrRunNewVersion with Installed set
 * - The outcome is written to result.json next to the package, except when the position check fails
 */
func (c *Coordinator) RunInstall(ctx context.Context, ic installctx.InstallContext) (Report, error) {
	report := Report{Phase: PhaseStart}
	err := c.run(ctx, ic, &report)
	if err != nil {
		logger.Errorf("Install stopped after phase '%s': %v", report.Phase, err)
	}
	// 位置检查失败时不写任何文件
	if !errors.Is(err, models.ErrRunInstallerPosition) {
		c.writeResult(ic, report, err)
	}
	return report, err
}

// CheckPosition fails with ErrRunInstallerPosition when exe lives inside target.
func CheckPosition(exe, target string) error {
	if isInside(exe, target) {
		return models.NewError(models.ErrRunInstallerPosition, "'%s' is inside '%s'", exe, target)
	}
	return nil
}

func (c *Coordinator) run(ctx context.Context, ic installctx.InstallContext, report *Report) error {
	exe, err := c.executable()
	if err != nil {
		return models.WrapError(models.ErrRunInstaller, err, "locate installer executable")
	}
	if err := CheckPosition(exe, ic.Target); err != nil {
		return err
	}
	report.Phase = PhasePositionChecked

	if err := c.quiescence.Quiesce(ctx, ic.WaitPid); err != nil {
		if ctx.Err() != nil {
			return models.WrapError(models.ErrRunInstaller, err, "wait for caller %d", ic.WaitPid)
		}
		// 调用方仍未退出时，由安装器的重命名重试兜底
		logger.Warnf("Caller (PID: %d) may still be running: %v", ic.WaitPid, err)
	}
	report.Phase = PhaseCallerQuiesced

	if !strings.EqualFold(filepath.Ext(ic.Source), "."+models.PackageFormatZip) {
		return models.NewError(models.ErrUnsupportedPackageFormat, "'%s'", ic.Source)
	}
	if err := c.installer.InstallZipPackage(ctx, ic.Source, ic.Target); err != nil {
		return err
	}
	report.Phase = PhaseInstalled
	report.Installed = true

	if err := os.Remove(ic.Source); err != nil && !os.IsNotExist(err) {
		logger.Warnf("Failed to remove package '%s': %v", ic.Source, err)
	}
	report.Phase = PhaseSourceCleaned

	if err := c.selfDeleter.ScheduleSelfDelete(exe); err != nil {
		logger.Warnf("Failed to schedule removal of '%s': %v", exe, err)
	}
	report.Phase = PhaseSelfDeleteScheduled

	launchFile := ic.LaunchFile
	if !filepath.IsAbs(launchFile) {
		launchFile = filepath.Join(ic.Target, launchFile)
	}
	if err := proc.MakeExecutable(launchFile); err != nil {
		logger.Warnf("Failed to mark '%s' executable: %v", launchFile, err)
	}
	pid, err := c.launcher.Launch(filepath.Base(launchFile), launchFile, installctx.NewVersionArgs(ic.Force), ic.Target)
	if err != nil {
		return models.WrapError(models.ErrRunNewVersion, err, "'%s' installed but not running", launchFile)
	}
	report.Phase = PhaseRelaunched
	report.Pid = pid
	logger.Infof("New version started: %s (PID: %d)", launchFile, pid)
	return nil
}

func (c *Coordinator) writeResult(ic installctx.InstallContext, report Report, err error) {
	r := result.Result{
		Success:    err == nil,
		Installed:  report.Installed,
		Version:    c.version,
		Phase:      string(report.Phase),
		Kind:       models.KindName(err),
		ExecutedAt: time.Now(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	dir := filepath.Dir(ic.Source)
	if werr := result.Write(dir, r); werr != nil {
		logger.Warnf("Failed to write install result into '%s': %v", dir, werr)
	}
}

// isInside reports whether path is dir itself or below it.
func isInside(path, dir string) bool {
	p := canonical(path)
	d := canonical(dir)
	rel, err := filepath.Rel(d, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func canonical(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
	}
	return filepath.Clean(path)
}
