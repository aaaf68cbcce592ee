package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"omibyte.io/stm8kit/builder"
)

var (
	buildOpts = struct {
		dir              string
		buildDir         string
		jobs             int
		force            bool
		noDCE            bool
		flash            bool
		skipVersionCheck bool
	}{}

	buildCmd = &cobra.Command{
		Use:   "build [flags]",
		Short: "Build the project image",
		Long:  "Compile the SPL and the project sources, eliminate dead code, link and check the image against the target budgets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := builder.Build(cmd.Context(), builder.Options{
				Dir:              buildOpts.dir,
				BuildDir:         buildOpts.buildDir,
				Environment:      builder.Environment(),
				NumJobs:          buildOpts.jobs,
				Force:            buildOpts.force,
				NoDCE:            buildOpts.noDCE,
				Flash:            buildOpts.flash,
				SkipVersionCheck: buildOpts.skipVersionCheck,
				Stdout:           cmd.OutOrStdout(),
				Stderr:           cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%d compiled, %d up to date)\n", result.IHX, result.Compiled, result.UpToDate)
			if result.DCE != nil {
				fmt.Fprintln(out, result.DCE.Summary())
			}
			fmt.Fprintln(out, result.Usage)
			return nil
		},
	}
)

func init() {
	buildCmd.Flags().StringVarP(&buildOpts.dir, "dir", "C", ".", "project directory")
	buildCmd.Flags().StringVarP(&buildOpts.buildDir, "output", "o", "", "output directory (default from "+builder.ConfigFile+")")
	buildCmd.Flags().IntVarP(&buildOpts.jobs, "jobs", "j", runtime.NumCPU(), "number of concurrent compiles")
	buildCmd.Flags().BoolVarP(&buildOpts.force, "force", "B", false, "rebuild units that are up to date")
	buildCmd.Flags().BoolVar(&buildOpts.noDCE, "no-dce", false, "link without dead code elimination")
	buildCmd.Flags().BoolVar(&buildOpts.flash, "flash", false, "flash the image after a successful build")
	buildCmd.Flags().BoolVar(&buildOpts.skipVersionCheck, "skip-version-check", false, "accept any SDCC release")
}
