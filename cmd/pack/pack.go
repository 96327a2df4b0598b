package pack

import (
	"fmt"
	"os"

	"costrict-updater/cmd/root"
	"costrict-updater/internal/config"
	"costrict-updater/services"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	optName    string
	optVersion string
	optOutput  string
	optBaseURL string
	optAlgos   []string
)

var packCmd = &cobra.Command{
	Use:   "pack <dir>",
	Short: "将目录打包为zip安装包，并输出包配置中的版本条目",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := optOutput
		if out == "" {
			out = config.App().Server.FileDir
		}
		path, info, err := services.BuildPackage(args[0], services.PackOptions{
			Name:       optName,
			Version:    optVersion,
			OutDir:     out,
			BaseURL:    optBaseURL,
			Algorithms: optAlgos,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Package written to %s\n", path)

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(map[string]config.PackageInfo{optVersion: info})
	},
}

func init() {
	packCmd.Flags().SortFlags = false
	packCmd.Flags().StringVarP(&optName, "name", "n", "", "包名")
	packCmd.Flags().StringVarP(&optVersion, "version", "v", "", "包版本")
	packCmd.Flags().StringVarP(&optOutput, "output", "o", "", "输出目录，默认为server.file_dir")
	packCmd.Flags().StringVarP(&optBaseURL, "base-url", "u", "", "下载地址前缀，如 http://host:8090/packages")
	packCmd.Flags().StringSliceVarP(&optAlgos, "hash", "a", []string{"sha256"}, "摘要算法(md5/sha1/sha224/sha256/sha384/sha512)")
	packCmd.MarkFlagRequired("name")
	packCmd.MarkFlagRequired("version")
	root.RootCmd.AddCommand(packCmd)

	packCmd.Example = `  costrict-updater pack ./dist -n app -v 1.3.0 -u http://localhost:8090/packages`
}
