// Package ls lists the carts of a library as the boot firmware sees them.
package ls

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/clktmr/rvfm/drivers/carts"
	"github.com/clktmr/rvfm/hw/cartloader"
	"github.com/clktmr/rvfm/sim"
	"github.com/clktmr/rvfm/tools/host"
)

func Command() *cobra.Command {
	var library, logLevel string
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List the carts of a library",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			logger, err := host.Logger(logLevel)
			if err != nil {
				return err
			}
			lib, err := host.OpenLibrary(library)
			if err != nil {
				return err
			}
			defer lib.Close()

			m := sim.New(sim.Config{Library: lib, Logger: logger})
			defer m.Stop()
			client := host.NewClient(m)
			defer client.Close()

			var recs []*cartloader.Record
			if err := client.Do(func() { recs, err = client.Carts.List() }); err != nil {
				return err
			}
			Print(c.OutOrStdout(), recs)
			return err
		},
	}
	cmd.Flags().StringVarP(&library, "library", "l", host.Getenv(host.EnvLibrary, ""), "cart library directory or FAT image")
	cmd.Flags().StringVar(&logLevel, "log", host.Getenv(host.EnvLog, "warn"), "log level")
	return cmd
}

// Print writes a table of recs to w.
func Print(w io.Writer, recs []*cartloader.Record) {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tVERSION\tDEVELOPER\tDIGEST")
	for i, rec := range recs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%02x\n", i, carts.Label(rec.Name), rec.Version, rec.Developer, carts.Digest(rec))
	}
	tw.Flush()
}
