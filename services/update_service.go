package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"costrict-updater/internal/config"
	"costrict-updater/internal/download"
	"costrict-updater/internal/installctx"
	"costrict-updater/internal/logger"
	"costrict-updater/internal/manifest"
	"costrict-updater/internal/models"
	"costrict-updater/internal/proc"
	"costrict-updater/internal/result"
)

// installerSuffix 安装器副本的文件名后缀，副本与安装包放在同一目录
const installerSuffix = "-installer"

/**
 * Updater 应用侧的更新流程：查询、下载、启动安装器
 * @description
 * - 安装器是当前程序的一个副本，放在安装目录之外运行
 * - 启动安装器后，调用方应尽快退出，安装器会等待调用方进程结束
 */
type Updater struct {
	cfg        config.UpdaterConfig
	client     *manifest.Client
	downloader *download.Downloader
	launcher   proc.Launcher
	executable func() (string, error)
}

type UpdaterOption func(*Updater)

func WithDownloader(d *download.Downloader) UpdaterOption {
	return func(u *Updater) { u.downloader = d }
}

func WithManifestClient(c *manifest.Client) UpdaterOption {
	return func(u *Updater) { u.client = c }
}

func WithInstallerLauncher(l proc.Launcher) UpdaterOption {
	return func(u *Updater) { u.launcher = l }
}

func WithSelfExecutable(fn func() (string, error)) UpdaterOption {
	return func(u *Updater) { u.executable = fn }
}

func NewUpdater(cfg config.UpdaterConfig, opts ...UpdaterOption) *Updater {
	cfg.Correct()
	u := &Updater{
		cfg:        cfg,
		launcher:   proc.DetachedLauncher{},
		executable: os.Executable,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.client == nil {
		u.client = manifest.NewClient(cfg, nil)
	}
	if u.downloader == nil {
		u.downloader = download.New(cfg)
	}
	return u
}

/**
 * Ask the manifest server whether a newer package exists
 * @returns {*models.PackageDescriptor} Package to install, nil when up to date
 */
func (u *Updater) Check(ctx context.Context) (*models.PackageDescriptor, error) {
	desc, err := u.client.Check(ctx, u.cfg.PackageName, u.cfg.CurrentVersion)
	if err != nil {
		return nil, err
	}
	if desc == nil {
		logger.Infof("Package '%s' %s is up to date", u.cfg.PackageName, u.cfg.CurrentVersion)
		return nil, nil
	}
	logger.Infof("New version of '%s' available: %s -> %s (force: %v)",
		desc.Name, u.cfg.CurrentVersion, desc.Version, desc.Force)
	return desc, nil
}

/**
 * Download and verify a package, recording download metrics
 * @param {download.ProgressFunc} progress - Forwarded progress callback, may be nil
 * @returns {string} Verified package path
 */
func (u *Updater) Download(ctx context.Context, desc *models.PackageDescriptor, progress download.ProgressFunc) (string, error) {
	// 续传前已在磁盘上的数据不计入本次流量
	last := u.downloader.ResumeOffset(desc)
	path, err := u.downloader.Download(ctx, desc, func(downloaded, total int64) {
		if downloaded < last {
			// 服务器忽略Range时从0重新下载
			last = 0
		}
		RecordDownloadBytes(desc.Name, downloaded-last)
		last = downloaded
		if progress != nil {
			progress(downloaded, total)
		}
	})
	RecordDownload(desc.Name, err)
	return path, err
}

/**
 * Start the installer for a downloaded package
 * @param {string} packageFile - Verified package path
 * @param {string} target - Installation directory to replace
 * @param {string} launchFile - Program to start after installing, relative to target or absolute
 * @param {bool} force - Passed on to the new version
 * @returns {int} Installer process ID
 * @returns {error} ErrRunInstaller if the installer cannot be copied or started
 * @description
 * - Package and target paths are made absolute against the caller's working directory
 * - Copies the running executable next to the package, outside the target
 * - The installer waits for the current process, so the caller must exit afterwards
 */
func (u *Updater) LaunchInstaller(packageFile, target, launchFile string, force bool) (int, error) {
	// 安装器的工作目录在缓存目录，相对路径必须在这里解析
	packageFile, err := filepath.Abs(packageFile)
	if err != nil {
		return 0, models.WrapError(models.ErrRunInstaller, err, "resolve package path")
	}
	target, err = filepath.Abs(target)
	if err != nil {
		return 0, models.WrapError(models.ErrRunInstaller, err, "resolve target directory")
	}
	exe, err := u.executable()
	if err != nil {
		return 0, models.WrapError(models.ErrRunInstaller, err, "locate executable")
	}
	installerPath := installerCopyPath(exe, filepath.Dir(packageFile))
	if err := copyExecutable(exe, installerPath); err != nil {
		return 0, models.WrapError(models.ErrRunInstaller, err, "copy '%s' to '%s'", exe, installerPath)
	}

	ic := installctx.InstallContext{
		WaitPid:    os.Getpid(),
		Source:     packageFile,
		Target:     target,
		LaunchFile: launchFile,
		Force:      force,
	}
	pid, err := u.launcher.Launch(filepath.Base(installerPath), installerPath, ic.Args(), filepath.Dir(installerPath))
	if err != nil {
		return 0, models.WrapError(models.ErrRunInstaller, err, "start '%s'", installerPath)
	}
	logger.Infof("Installer started (PID: %d): %s %s", pid, installerPath, strings.Join(ic.Args(), " "))
	return pid, nil
}

// LastResult reads what the previous installer run reported, if anything.
func (u *Updater) LastResult() (result.Result, error) {
	return result.Read(u.cfg.PackageCacheDir(u.cfg.PackageName))
}

// ClearResult removes the previous installer report.
func (u *Updater) ClearResult() error {
	return result.Cleanup(u.cfg.PackageCacheDir(u.cfg.PackageName))
}

// installerCopyPath is <dir>/<exe name>-installer[.exe].
func installerCopyPath(exe, dir string) string {
	base := filepath.Base(exe)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+installerSuffix+ext)
}

func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return proc.MakeExecutable(dst)
}
