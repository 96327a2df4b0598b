package upgrade

import (
	"fmt"

	"costrict-updater/cmd/root"
	"costrict-updater/internal/installer"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install <package.zip> <target>",
	Short: "将zip安装包安装到目标目录(仅执行目录替换，不等待进程、不重启)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		if err := installer.New(updaterConfig()).InstallZipPackage(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Installed '%s' into '%s'\n", args[0], args[1])
		return nil
	},
}

func init() {
	root.RootCmd.AddCommand(installCmd)

	installCmd.Example = `  costrict-updater install ./app-1.3.0.zip /opt/app`
}
