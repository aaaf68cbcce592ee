package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"omibyte.io/stm8kit/dce"
)

var (
	dceOpts = struct {
		output  string
		entry   string
		exclude []string
		optIRQ  bool
	}{}

	dceCmd = &cobra.Command{
		Use:   "dce -o dir [flags] file.asm...",
		Short: "Remove unused functions from SDCC assembly",
		Long:  "Copy SDCC generated STM8 assembly files to the output directory with every function unreachable from the entry point and the interrupt handlers commented out",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := dce.Run(args, dceOpts.output, dce.Options{
				Entry:   dceOpts.entry,
				Exclude: dceOpts.exclude,
				OptIRQ:  dceOpts.optIRQ,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
			return nil
		},
	}
)

func init() {
	dceCmd.Flags().StringVarP(&dceOpts.output, "output", "o", "", "output directory")
	dceCmd.Flags().StringVarP(&dceOpts.entry, "entry", "e", dce.DefaultEntry, "entry function")
	dceCmd.Flags().StringSliceVarP(&dceOpts.exclude, "exclude", "x", nil, "functions to keep")
	dceCmd.Flags().BoolVar(&dceOpts.optIRQ, "opt-irq", false, "remove empty IRQ handlers (removes their iret)")
	dceCmd.MarkFlagRequired("output")
}
