package metrics

import (
	"fmt"

	"costrict-updater/cmd/root"
	"costrict-updater/internal/config"
	"costrict-updater/services"

	"github.com/spf13/cobra"
)

var (
	pushGatewayAddr string
	pushJob         string
)

func init() {
	root.RootCmd.AddCommand(Cmd)
	Cmd.Flags().SortFlags = false
	Cmd.Flags().StringVarP(&pushGatewayAddr, "addr", "a", "", "Pushgateway地址")
	Cmd.Flags().StringVarP(&pushJob, "job", "j", "", "上报使用的job名称")
}

var Cmd = &cobra.Command{
	Use:   "metrics",
	Short: "上报Prometheus指标",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.App().Metrics
		if pushGatewayAddr == "" {
			pushGatewayAddr = cfg.Pushgateway
		}
		if pushJob == "" {
			pushJob = cfg.Job
		}
		if pushGatewayAddr == "" {
			return fmt.Errorf("pushgateway address not configured")
		}
		if err := services.PushMetrics(pushGatewayAddr, pushJob); err != nil {
			return fmt.Errorf("%w\n请检查Pushgateway地址是否正确且可访问", err)
		}
		return nil
	},
}
