// stm8dce removes unused functions from SDCC generated STM8 assembly.
//
// Usage:
//
//	stm8dce -o outdir [-e entry] [-x name]... [--opt-irq] file.asm...
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"omibyte.io/stm8kit/dce"
)

const version = "0.0.1"

var (
	opts = struct {
		output  string
		entry   string
		exclude []string
		verbose bool
		debug   bool
		optIRQ  bool
	}{}

	rootCmd = &cobra.Command{
		Use:           "stm8dce -o dir [flags] file.asm...",
		Short:         "STM8 SDCC dead code elimination tool",
		Version:       version,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case opts.debug:
				flag.Set("v", "2")
			case opts.verbose:
				flag.Set("v", "1")
			}

			result, err := dce.Run(args, opts.output, dce.Options{
				Entry:   opts.entry,
				Exclude: opts.exclude,
				OptIRQ:  opts.optIRQ,
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
	rootCmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory")
	rootCmd.Flags().StringVarP(&opts.entry, "entry", "e", dce.DefaultEntry, "entry function")
	rootCmd.Flags().StringSliceVarP(&opts.exclude, "exclude", "x", nil, "exclude functions")
	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().BoolVarP(&opts.debug, "debug", "d", false, "debug output")
	rootCmd.Flags().BoolVar(&opts.optIRQ, "opt-irq", false, "remove unused IRQ handlers (caution: removes iret's for unused interrupts)")
	rootCmd.MarkFlagRequired("output")
}

func main() {
	// Verbosity comes from -v and -d; the glog flags are not exposed.
	flag.Set("logtostderr", "true")
	flag.CommandLine.Parse(nil)

	err := rootCmd.Execute()
	glog.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
