package upgrade

import (
	"fmt"

	"costrict-updater/cmd/root"
	"costrict-updater/services"

	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "下载并校验新版本安装包，支持断点续传",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		cfg := updaterConfig()
		u := services.NewUpdater(cfg)
		desc, err := u.Check(ctx)
		if err != nil {
			return err
		}
		if desc == nil {
			fmt.Printf("The '%s' version %s is up to date\n", cfg.PackageName, cfg.CurrentVersion)
			return nil
		}
		path, err := u.Download(ctx, desc, printProgress)
		fmt.Println()
		if err != nil {
			return err
		}
		fmt.Printf("Package saved to %s\n", path)
		return nil
	},
}

func init() {
	addPackageFlags(downloadCmd)
	root.RootCmd.AddCommand(downloadCmd)
}
