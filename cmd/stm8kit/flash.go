package main

import (
	"github.com/spf13/cobra"

	"omibyte.io/stm8kit/builder"
)

var (
	flashDir string

	flashCmd = &cobra.Command{
		Use:   "flash [image.ihx]",
		Short: "Write the image to the device",
		Long:  "Write an Intel HEX image, by default the one built for the project, to the device with stm8flash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var image string
			if len(args) > 0 {
				image = args[0]
			}
			return builder.Flash(cmd.Context(), builder.Options{
				Dir:         flashDir,
				Environment: builder.Environment(),
				Stdout:      cmd.OutOrStdout(),
				Stderr:      cmd.ErrOrStderr(),
			}, image)
		},
	}
)

func init() {
	flashCmd.Flags().StringVarP(&flashDir, "dir", "C", ".", "project directory")
}
