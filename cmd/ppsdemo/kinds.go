package main

import (
	"fmt"

	"github.com/oriumgames/pps"
	"github.com/spf13/cobra"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the registered processor and profile kinds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		scope, err := pps.NewBuilder().Bundle(demoBundle()).Init()
		if err != nil {
			return err
		}
		defer scope.Close()

		out := cmd.OutOrStdout()
		reg := scope.Registry()
		fmt.Fprintln(out, "Processors:")
		for _, name := range reg.ProcessorNames() {
			fmt.Fprintf(out, "  %s\n", name)
		}
		fmt.Fprintln(out, "Profiles:")
		for _, name := range reg.ProfileNames() {
			fmt.Fprintf(out, "  %s\n", name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(kindsCmd)
}
