package root

import (
	"fmt"
	"io"
	"os"

	"costrict-updater/internal/config"
	"costrict-updater/internal/installctx"
	"costrict-updater/internal/logger"
	"costrict-updater/services"

	"github.com/spf13/cobra"
)

var (
	optConfig   string
	optLogLevel string
)

var RootCmd = &cobra.Command{
	Use:   "costrict-updater",
	Short: "程序自更新工具",
	Long: `costrict-updater 负责程序的自更新：查询新版本、断点续传下载并校验安装包、
以 old/current/new 目录交换的方式替换安装目录，并重新启动新版本。
同时可作为升级服务器，根据版本策略下发安装包信息。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 服务器模式下日志同时输出到控制台
		return setup(cmd.Name() == "server")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !installctx.IsNewVersionLaunch(os.Args[1:]) {
			return cmd.Help()
		}
		u := services.NewUpdater(config.App().Updater)
		reportLastResult(cmd.OutOrStdout(), u, installctx.IsForceUpdated(os.Args[1:]))
		return nil
	},
}

func setup(console bool) error {
	cfg, err := config.Init(optConfig)
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}
	level := cfg.Log.Level
	if optLogLevel != "" {
		level = optLogLevel
	}
	logger.InitLogger(cfg.Log.Path, level, console, cfg.Log.MaxSize)
	return nil
}

// reportLastResult prints what the installer wrote before starting this process.
func reportLastResult(w io.Writer, u *services.Updater, force bool) {
	r, err := u.LastResult()
	if err != nil {
		logger.Warnf("Started as new version but no install result found: %v", err)
		return
	}
	if r.Success {
		fmt.Fprintf(w, "Updated to version %s (forced: %v)\n", r.Version, force)
	} else {
		fmt.Fprintf(w, "Update to version %s failed at phase '%s': %s\n", r.Version, r.Phase, r.Error)
	}
	logger.Infof("Install result: success=%v phase=%s kind=%s", r.Success, r.Phase, r.Kind)
	if err := u.ClearResult(); err != nil {
		logger.Warnf("Failed to remove install result: %v", err)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&optConfig, "config", "c", "", "配置文件路径")
	RootCmd.PersistentFlags().StringVar(&optLogLevel, "log-level", "", "日志级别(debug/info/warn/error)")
	// 由安装器传入，RunE中通过installctx解析
	RootCmd.Flags().Bool(installctx.FlagNewVersion, false, "由安装器启动的新版本")
	RootCmd.Flags().String(installctx.FlagForce, "0", "本次更新是否为强制更新")
	RootCmd.Flags().MarkHidden(installctx.FlagNewVersion)
	RootCmd.Flags().MarkHidden(installctx.FlagForce)
}
