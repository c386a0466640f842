// Package console is an interactive shell issuing cart loader commands to
// the simulator.
package console

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/buildkite/shellwords"
	"github.com/spf13/cobra"

	"github.com/clktmr/rvfm/drivers/carts"
	"github.com/clktmr/rvfm/sim"
	"github.com/clktmr/rvfm/tools/host"
)

const usageString = `Commands:
	enumerate                      rescan the library
	list                           enumerate and print all records
	meta <index>                   print a record
	load <index>                   load a cart, resets the boot core
	insert <index>                 make a cart current without loading it
	open <slot> <path> [rw]        open a file of the current cart
	openbin <slot> [offset length] open the current cart's data file
	close <slot>                   close a slot
	extents <slot>                 print the length of an open slot
	read <slot> <offset> <length>  hex dump bytes of a slot
	write <slot> <offset> <text>   write text to a slot
	help                           print this help
	quit                           leave the console
`

type shell struct {
	m      *sim.Machine
	client *host.Client
	out    io.Writer
}

func Command() *cobra.Command {
	var library, logLevel string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Issue cart loader commands interactively",
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

			sh := &shell{m: m, client: client, out: c.OutOrStdout()}
			return sh.Run(c.InOrStdin())
		},
	}
	cmd.Flags().StringVarP(&library, "library", "l", host.Getenv(host.EnvLibrary, ""), "cart library directory or FAT image")
	cmd.Flags().StringVar(&logLevel, "log", host.Getenv(host.EnvLog, "warn"), "log level")
	return cmd
}

var errQuit = errors.New("quit")

// Run executes lines read from r until EOF or quit.
func (sh *shell) Run(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for {
		fmt.Fprint(sh.out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(sh.out)
			return sc.Err()
		}
		args, err := shellwords.Split(sc.Text())
		if err != nil {
			fmt.Fprintln(sh.out, "error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		err = sh.exec(args)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(sh.out, "error:", err)
		}
	}
}

func argInt(args []string, i int) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	v, err := strconv.ParseInt(args[i], 0, 64)
	return int(v), err
}

func (sh *shell) exec(args []string) (err error) {
	c := sh.client
	do := func(fn func() error) error {
		var ferr error
		if err := c.Do(func() { ferr = fn() }); err != nil {
			return err
		}
		return ferr
	}

	switch args[0] {
	case "help":
		fmt.Fprint(sh.out, usageString)
	case "quit", "exit":
		return errQuit
	case "enumerate":
		return do(func() error {
			n, err := c.Carts.Enumerate()
			fmt.Fprintln(sh.out, n, "carts")
			return err
		})
	case "list":
		return do(func() error {
			recs, err := c.Carts.List()
			w := tabwriter.NewWriter(sh.out, 0, 8, 2, ' ', 0)
			for i, rec := range recs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%02x\n", i, rec.Name, rec.Version, rec.Developer, carts.Digest(rec))
			}
			w.Flush()
			return err
		})
	case "meta":
		i, err := argInt(args, 1)
		if err != nil {
			return err
		}
		return do(func() error {
			rec, err := c.Carts.Metadata(i)
			if err != nil {
				return err
			}
			fmt.Fprintf(sh.out, "name:      %s\nversion:   %s\ndeveloper: %s\nurl:       %s\nsource:    %s\n",
				rec.Name, rec.Version, rec.Developer, rec.DeveloperURL, rec.SourceURL)
			return nil
		})
	case "load":
		i, err := argInt(args, 1)
		if err != nil {
			return err
		}
		err = do(func() error { return c.Carts.Load(i) })
		if errors.Is(err, host.ErrReset) {
			fmt.Fprintln(sh.out, "cart launched")
			return nil
		}
		return err
	case "insert":
		i, err := argInt(args, 1)
		if err != nil {
			return err
		}
		return sh.m.CartLoader.Insert(i)
	case "open":
		slot, err := argInt(args, 1)
		if err != nil {
			return err
		}
		if len(args) < 3 {
			return fmt.Errorf("missing path")
		}
		writable := len(args) > 3 && args[3] == "rw"
		return do(func() error {
			_, err := c.Slots.OpenFile(slot, args[2], writable)
			return err
		})
	case "openbin":
		slot, err := argInt(args, 1)
		if err != nil {
			return err
		}
		var off, length int
		if len(args) > 3 {
			if off, err = argInt(args, 2); err != nil {
				return err
			}
			if length, err = argInt(args, 3); err != nil {
				return err
			}
		}
		return do(func() error {
			_, err := c.Slots.OpenBinary(slot, uint32(off), uint32(length))
			return err
		})
	case "close":
		slot, err := argInt(args, 1)
		if err != nil {
			return err
		}
		return do(func() error { return c.Slots.Close(slot) })
	case "extents":
		slot, err := argInt(args, 1)
		if err != nil {
			return err
		}
		return do(func() error {
			n, err := c.Slots.Extents(slot)
			if err == nil {
				fmt.Fprintln(sh.out, n)
			}
			return err
		})
	case "read":
		slot, err := argInt(args, 1)
		if err != nil {
			return err
		}
		off, err := argInt(args, 2)
		if err != nil {
			return err
		}
		length, err := argInt(args, 3)
		if err != nil {
			return err
		}
		return do(func() error {
			p := make([]byte, length)
			n, err := c.Slots.Read(slot, p, uint32(off))
			fmt.Fprintf(sh.out, "%d bytes\n%s", n, hex.Dump(p[:n]))
			return err
		})
	case "write":
		slot, err := argInt(args, 1)
		if err != nil {
			return err
		}
		off, err := argInt(args, 2)
		if err != nil {
			return err
		}
		if len(args) < 4 {
			return fmt.Errorf("missing text")
		}
		return do(func() error {
			n, err := c.Slots.Write(slot, []byte(args[3]), uint32(off))
			fmt.Fprintf(sh.out, "%d bytes\n", n)
			return err
		})
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
	return nil
}
