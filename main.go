package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	_ "costrict-updater/cmd"
	"costrict-updater/cmd/root"
	"costrict-updater/internal/config"
	"costrict-updater/internal/coordinator"
	"costrict-updater/internal/installctx"
	"costrict-updater/internal/logger"
	"costrict-updater/services"
)

const installerLogName = "installer.log"

func main() {
	// 安装模式由应用侧启动，参数不经过命令行子命令解析
	ic, ok, err := installctx.TryParse(os.Args[1:])
	if err != nil || ok {
		os.Exit(runInstaller(ic, err))
	}

	if err := root.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

/**
 * Run as installer
 * @param {installctx.InstallContext} ic - Parsed install context
 * @param {error} parseErr - Argument error, the installer exits without touching anything
 * @returns {int} Process exit code
 */
func runInstaller(ic installctx.InstallContext, parseErr error) int {
	if parseErr != nil {
		logger.Errorf("Invalid installer arguments %q: %v", os.Args[1:], parseErr)
		return 2
	}

	// 先只输出到控制台，位置检查通过前不在磁盘上留下任何文件
	logger.InitLogger("", "info", true, 0)
	exe, err := os.Executable()
	if err == nil {
		err = coordinator.CheckPosition(exe, ic.Target)
	}
	if err != nil {
		logger.Errorf("Installer refused to run: %v", err)
		return 1
	}

	appCfg, err := config.LoadConfigFrom(programDir(ic))
	if err != nil {
		appCfg = &config.AppConfig{Updater: config.DefaultUpdaterConfig()}
	}
	logger.InitLogger(filepath.Join(filepath.Dir(ic.Source), installerLogName), "info", true, appCfg.Log.MaxSize)
	if err != nil {
		logger.Warnf("Load config failed, using defaults: %v", err)
	}
	logger.Infof("Installer started: wait-pid=%d source=%s target=%s launch-file=%s force=%v",
		ic.WaitPid, ic.Source, ic.Target, ic.LaunchFile, ic.Force)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c := coordinator.New(appCfg.Updater, coordinator.WithVersion(versionFromPackage(ic.Source)))
	report, err := c.RunInstall(ctx, ic)
	services.RecordInstall(string(report.Phase), err)
	if perr := services.PushMetrics(appCfg.Metrics.Pushgateway, appCfg.Metrics.Job); perr != nil {
		logger.Warnf("Push install metrics failed: %v", perr)
	}
	if err != nil {
		return 1
	}
	return 0
}

// programDir is the directory of the program being replaced, where its config.yaml lives.
func programDir(ic installctx.InstallContext) string {
	launchFile := ic.LaunchFile
	if !filepath.IsAbs(launchFile) {
		launchFile = filepath.Join(ic.Target, launchFile)
	}
	return filepath.Dir(launchFile)
}

// versionFromPackage extracts "1.3.0" from ".../app-1.3.0.zip".
func versionFromPackage(source string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if i := strings.LastIndex(base, "-"); i >= 0 {
		return base[i+1:]
	}
	return ""
}
