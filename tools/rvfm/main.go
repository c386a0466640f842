// Command rvfm runs and inspects rvfm cart libraries on the simulator.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/clktmr/rvfm/tools/boot"
	"github.com/clktmr/rvfm/tools/console"
	"github.com/clktmr/rvfm/tools/icon"
	"github.com/clktmr/rvfm/tools/ls"
	"github.com/clktmr/rvfm/tools/mkimage"
)

func main() {
	root := &cobra.Command{
		Use:   "rvfm",
		Short: "rvfm is a tool for developing and testing rvfm carts.",
		Long: `rvfm runs the boot firmware and cart loader on a simulated machine.

Cart libraries are directories holding one directory per cart, each with a
cart.json manifest. They can be packed into FAT32 images with mkimage.
The library defaults to $RVFM_LIBRARY and the log level to $RVFM_LOG.`,
		SilenceUsage: true,
	}
	root.AddCommand(
		boot.Command(),
		console.Command(),
		ls.Command(),
		mkimage.Command(),
		icon.Command(),
	)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
