package upgrade

import (
	"fmt"

	"costrict-updater/cmd/root"
	"costrict-updater/services"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "查询是否有新版本",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		cfg := updaterConfig()
		desc, err := services.NewUpdater(cfg).Check(ctx)
		if err != nil {
			return err
		}
		if desc == nil {
			fmt.Printf("The '%s' version %s is up to date\n", cfg.PackageName, cfg.CurrentVersion)
			return nil
		}
		fmt.Printf("New version:  %s\n", desc.Version)
		fmt.Printf("Force update: %v\n", desc.Force)
		fmt.Printf("Package:      %s (%d bytes)\n", desc.URL, desc.Size)
		if desc.Title != "" {
			fmt.Printf("Title:        %s\n", desc.Title)
		}
		if desc.Description != "" {
			fmt.Printf("Description:  %s\n", desc.Description)
		}
		return nil
	},
}

func init() {
	addPackageFlags(checkCmd)
	root.RootCmd.AddCommand(checkCmd)
}
