package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"omibyte.io/stm8kit/targets"
)

var (
	targetsTag string

	targetsCmd = &cobra.Command{
		Use:   "targets",
		Short: "List the supported STM8 parts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list := targets.All()
			if len(targetsTag) > 0 {
				list = list.Tagged(targetsTag)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "CHIP\tDEFINE\tFLASH\tRAM\tEEPROM\tTAGS")
			for _, t := range list {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", t.Chip, t.Define, t.FlashSize, t.RAMSize, t.EEPROMSize, strings.Join(t.Tags, ","))
			}
			return w.Flush()
		},
	}
)

func init() {
	targetsCmd.Flags().StringVarP(&targetsTag, "tag", "t", "", "only list parts with this tag")
}
