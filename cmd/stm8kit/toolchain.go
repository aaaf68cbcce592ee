package main

import (
	"fmt"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"omibyte.io/stm8kit/builder"
	"omibyte.io/stm8kit/toolchain"
)

var (
	toolchainOpts = struct {
		manifest string
		jobs     int
	}{}

	toolchainCmd = &cobra.Command{
		Use:   "toolchain",
		Short: "Fetch and build the STM8 toolchain",
		Long:  "Fetch and build SDCC, the STM8 binutils and stm8flash into $STM8KITROOT",
	}

	toolchainListCmd = &cobra.Command{
		Use:   "list",
		Short: "List the toolchain components",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := toolchain.LoadManifest(toolchainOpts.manifest)
			if err != nil {
				return err
			}
			components, err := m.Order()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVERSION\tSOURCE\tDESCRIPTION")
			for _, c := range components {
				source := ""
				if c.Archive != nil {
					source = c.Archive.URL
				} else if c.Git != nil {
					source = c.Git.URL
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.Version, source, c.Description)
			}
			return w.Flush()
		},
	}

	toolchainFetchCmd = &cobra.Command{
		Use:   "fetch [component...]",
		Short: "Download the sources of toolchain components",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, components, err := toolchainInstaller(args)
			if err != nil {
				return err
			}
			for _, c := range components {
				srcDir, err := in.Fetch(cmd.Context(), c)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", c.Name, srcDir)
			}
			return nil
		},
	}

	toolchainBuildCmd = &cobra.Command{
		Use:   "build [component...]",
		Short: "Fetch, build and install toolchain components",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, components, err := toolchainInstaller(args)
			if err != nil {
				return err
			}
			in.Runner = builder.ExecRunner{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
			return in.Install(cmd.Context(), components)
		},
	}
)

func toolchainInstaller(names []string) (*toolchain.Installer, []*toolchain.Component, error) {
	m, err := toolchain.LoadManifest(toolchainOpts.manifest)
	if err != nil {
		return nil, nil, err
	}
	components, err := m.Order(names...)
	if err != nil {
		return nil, nil, err
	}
	in := toolchain.NewInstaller(builder.Environment())
	in.Jobs = toolchainOpts.jobs
	return in, components, nil
}

func init() {
	toolchainCmd.PersistentFlags().StringVar(&toolchainOpts.manifest, "manifest", "", "component manifest (default built in)")
	toolchainCmd.PersistentFlags().IntVarP(&toolchainOpts.jobs, "jobs", "j", runtime.NumCPU(), "number of parallel make jobs")
	toolchainCmd.AddCommand(toolchainListCmd, toolchainFetchCmd, toolchainBuildCmd)
}
