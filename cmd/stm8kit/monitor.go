package main

import (
	"github.com/spf13/cobra"

	"omibyte.io/stm8kit/serial"
)

var (
	monitorOpts serial.Options

	monitorCmd = &cobra.Command{
		Use:   "monitor",
		Short: "Print the serial output of the board",
		Long:  "Open the UART of the board and copy everything it sends to the terminal until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serial.Monitor(cmd.Context(), monitorOpts, cmd.OutOrStdout())
		},
	}
)

func init() {
	monitorCmd.Flags().StringVarP(&monitorOpts.Port, "port", "p", "", "serial device (default first USB serial adapter)")
	monitorCmd.Flags().IntVarP(&monitorOpts.Baud, "baud", "b", serial.DefaultBaud, "baud rate")
}
