package main

import (
	"github.com/spf13/cobra"

	"omibyte.io/stm8kit/builder"
)

var (
	cleanDir string

	cleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Remove the build output of the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := builder.LoadConfig(cleanDir)
			if err != nil {
				return err
			}
			return builder.Clean(cfg)
		},
	}
)

func init() {
	cleanCmd.Flags().StringVarP(&cleanDir, "dir", "C", ".", "project directory")
}
