package cli

import (
	"github.com/spf13/cobra"

	"drawdownwatch/internal/app"
)

var checkAsset string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one monitoring cycle now and print the verdict",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Check(cmd.Context(), app.CheckOptions{Asset: checkAsset})
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkAsset, "asset", "", "Only check this asset (sp500 or bitcoin)")
}
