package upgrade

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"costrict-updater/cmd/root"
	"costrict-updater/internal/config"
	"costrict-updater/internal/models"
	"costrict-updater/services"

	"github.com/spf13/cobra"
)

var (
	optPackage    string
	optCurrent    string
	optTarget     string
	optLaunchFile string
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "查询并升级到最新版本",
	Long: `查询升级服务器，下载并校验新版本安装包，然后启动安装器并退出。
安装器等待本进程退出后替换安装目录，再启动新版本。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return runUpgrade(ctx)
	},
}

func runUpgrade(ctx context.Context) error {
	u := services.NewUpdater(updaterConfig())
	desc, err := u.Check(ctx)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	if desc == nil {
		fmt.Printf("The '%s' version is up to date\n", optPackageName())
		return nil
	}
	path, err := u.Download(ctx, desc, printProgress)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("download '%s' failed: %w", desc.FileName(), err)
	}

	target, launchFile, err := installTarget()
	if err != nil {
		return err
	}
	pid, err := u.LaunchInstaller(path, target, launchFile, desc.Force)
	if err != nil {
		return err
	}
	fmt.Printf("Installer started (PID: %d), upgrading '%s' to %s\n", pid, desc.Name, desc.Version)
	return nil
}

// updaterConfig 读取配置并应用命令行覆盖
func updaterConfig() config.UpdaterConfig {
	cfg := config.App().Updater
	if optPackage != "" {
		cfg.PackageName = optPackage
	}
	if optCurrent != "" {
		cfg.CurrentVersion = optCurrent
	}
	return cfg
}

func optPackageName() string {
	return updaterConfig().PackageName
}

// installTarget defaults to the directory and file name of the running executable.
func installTarget() (string, string, error) {
	target, launchFile := optTarget, optLaunchFile
	if target != "" && launchFile != "" {
		return target, launchFile, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", "", models.WrapError(models.ErrRunInstaller, err, "locate executable")
	}
	if target == "" {
		target = filepath.Dir(exe)
	}
	if launchFile == "" {
		launchFile = filepath.Base(exe)
	}
	return target, launchFile, nil
}

func printProgress(downloaded, total int64) {
	if total <= 0 {
		return
	}
	fmt.Printf("\rDownloading: %d/%d bytes (%d%%)", downloaded, total, downloaded*100/total)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func addPackageFlags(cmd *cobra.Command) {
	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&optPackage, "package", "p", "", "包名，默认使用配置中的updater.package_name")
	cmd.Flags().StringVarP(&optCurrent, "current", "v", "", "当前版本，默认使用配置中的updater.current_version")
}

func init() {
	addPackageFlags(upgradeCmd)
	upgradeCmd.Flags().StringVarP(&optTarget, "target", "t", "", "安装目录，默认为当前程序所在目录")
	upgradeCmd.Flags().StringVarP(&optLaunchFile, "launch-file", "l", "", "安装完成后启动的程序，默认为当前程序")
	root.RootCmd.AddCommand(upgradeCmd)
}
