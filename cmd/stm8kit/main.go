package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// version is set at link time with -ldflags "-X main.version=...".
var version = "devel"

var rootCmd = &cobra.Command{
	Use:   "stm8kit",
	Short: "Build, shrink and flash STM8 firmware",
	Long: `stm8kit builds STM8 firmware with SDCC: it compiles the Standard Peripheral
Library and the project sources, removes unused functions from the generated
assembly, links a flashable image, checks it against the memory budgets of the
target and writes it to the device with stm8flash.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// glog registers its flags on the standard flag set.
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)

	rootCmd.AddCommand(
		buildCmd,
		dceCmd,
		sizeCmd,
		flashCmd,
		toolchainCmd,
		targetsCmd,
		envCmd,
		monitorCmd,
		cleanCmd,
		versionCmd,
	)
}

func main() {
	// Progress goes to the terminal unless the user asks for log files.
	flag.Set("logtostderr", "true")
	flag.CommandLine.Parse(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	glog.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, "stm8kit:", err)
		os.Exit(1)
	}
}
