package cli

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"drawdownwatch/internal/app"
)

var (
	simulateAsset   string
	simulatePeak    float64
	simulateCurrent float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次回撤并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePeak <= 0 || simulateCurrent <= 0 {
			return errors.New("--peak 与 --current 必须大于 0")
		}

		out, err := getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Asset:   simulateAsset,
			Peak:    decimal.NewFromFloat(simulatePeak),
			Current: decimal.NewFromFloat(simulateCurrent),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "drop %s%%, threshold %s%%, alerted %t, next threshold %s%%\n",
			out.DropPct.StringFixed(1), out.Threshold.StringFixed(1), out.Alerted, out.NextThreshold.StringFixed(1))
		return nil
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateAsset, "asset", "sp500", "资产 (sp500 或 bitcoin)")
	simulateCmd.Flags().Float64Var(&simulatePeak, "peak", 0, "模拟的平滑峰值")
	simulateCmd.Flags().Float64Var(&simulateCurrent, "current", 0, "模拟的当前价格")
}
