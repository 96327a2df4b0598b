package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"costrict-updater/cmd/root"
	"costrict-updater/controllers"
	"costrict-updater/internal/config"
	"costrict-updater/internal/logger"
	"costrict-updater/internal/middleware"
	"costrict-updater/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	optAddress    string
	optSocket     string
	optPackageDir string
	optFileDir    string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动升级服务器",
	Long: `启动升级服务器：根据包配置目录中的版本策略响应升级查询，并提供安装包下载。
包配置文件变化后自动重新加载。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return startServer(ctx, serverConfig())
	},
}

func serverConfig() config.ServerConfig {
	cfg := config.App().Server
	if optAddress != "" {
		cfg.Address = optAddress
	}
	if optSocket != "" {
		cfg.Socket = optSocket
	}
	if optPackageDir != "" {
		cfg.PackageDir = optPackageDir
	}
	if optFileDir != "" {
		cfg.FileDir = optFileDir
	}
	return cfg
}

func startServer(ctx context.Context, cfg config.ServerConfig) error {
	if err := os.MkdirAll(cfg.PackageDir, 0755); err != nil {
		return fmt.Errorf("create package directory: %w", err)
	}
	packages, err := config.ScanPackageDir(cfg.PackageDir)
	if err != nil {
		return fmt.Errorf("load package configs from '%s': %w", cfg.PackageDir, err)
	}
	manifest := services.NewManifestService(packages)
	logger.Infof("Loaded %d package configs from '%s'", len(packages), cfg.PackageDir)

	if err := config.WatchPackageDir(ctx, cfg.PackageDir, manifest.Reload); err != nil {
		logger.Warnf("Package config hot reload disabled: %v", err)
	}

	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.AccessLog(), middleware.MetricsMiddleware())
	apiController := controllers.NewAPIController(manifest, cfg, root.RootCmd.Version)
	apiController.RegisterRoutes(router)

	var addrs []ListenAddr
	if cfg.Address != "" {
		addrs = append(addrs, ListenAddr{Network: "tcp", Address: cfg.Address})
	}
	if cfg.Socket != "" && IsUnixSocketSupported() {
		addrs = append(addrs, ListenAddr{Network: "unix", Address: cfg.Socket})
	}
	listeners, err := CreateListeners(addrs)
	if len(listeners) == 0 {
		if err == nil {
			err = errors.New("no listen address configured")
		}
		return fmt.Errorf("启动服务失败: %w", err)
	}

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, len(listeners))
	for _, l := range listeners {
		logger.Infof("Upgrade server listening on %s://%s", l.Addr().Network(), l.Addr().String())
		go func(l net.Listener) {
			if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(l)
	}

	select {
	case <-ctx.Done():
		logger.Info("Upgrade server shutting down")
	case err = <-errCh:
		logger.Errorf("Upgrade server error: %v", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Warnf("Shutdown: %v", serr)
	}
	if cfg.Socket != "" {
		os.Remove(cfg.Socket)
	}
	return err
}

func init() {
	serverCmd.Flags().SortFlags = false
	serverCmd.Flags().StringVarP(&optAddress, "address", "a", "", "TCP监听地址，如 :8090")
	serverCmd.Flags().StringVarP(&optSocket, "sock", "s", "", "Unix socket文件路径")
	serverCmd.Flags().StringVar(&optPackageDir, "packages", "", "包配置(yaml)目录")
	serverCmd.Flags().StringVar(&optFileDir, "files", "", "安装包文件目录，通过 /packages 下载")
	root.RootCmd.AddCommand(serverCmd)
}
