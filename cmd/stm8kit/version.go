package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"omibyte.io/stm8kit/builder"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the stm8kit and SDCC versions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "stm8kit", version)

		tc, err := builder.FindToolchain(builder.Environment())
		if err != nil {
			fmt.Fprintln(out, "sdcc not found")
			return
		}
		if err := tc.CheckVersion(cmd.Context(), builder.ExecRunner{}); err != nil {
			fmt.Fprintf(out, "%s: %v\n", tc.CC, err)
			return
		}
		fmt.Fprintf(out, "sdcc %s (%s)\n", tc.Version, tc.CC)
	},
}
