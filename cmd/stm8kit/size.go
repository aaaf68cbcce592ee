package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"omibyte.io/stm8kit/builder"
)

var (
	sizeDir string

	sizeCmd = &cobra.Command{
		Use:   "size",
		Short: "Report the memory footprint of the built image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			usage, err := builder.Size(cmd.Context(), builder.Options{
				Dir:         sizeDir,
				Environment: builder.Environment(),
			})
			// The footprint is reported even when it is over budget.
			if usage.FlashLimit > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), usage)
			}
			return err
		},
	}
)

func init() {
	sizeCmd.Flags().StringVarP(&sizeDir, "dir", "C", ".", "project directory")
}
