package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ppsdemo",
	Short: "Demo host for the pps processor runtime",
	Long: `ppsdemo builds a small tree of systems, drives it with the fixed-step
driver and persists the deployed instances between runs.`,
	SilenceUsage: true,
}

var configPath string

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file (defaults apply when empty)")
}
