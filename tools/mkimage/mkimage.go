// Package mkimage packs a cart library directory into a FAT32 disk image.
package mkimage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/clktmr/rvfm/sim"
)

func Command() *cobra.Command {
	var (
		size  int64
		label string
	)
	cmd := &cobra.Command{
		Use:   "mkimage <library> <image>",
		Short: "Pack a cart library into a FAT32 disk image",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			n, err := Pack(args[0], args[1], size<<20, label)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "packed %d files into %s\n", n, args[1])
			return nil
		},
	}
	cmd.Flags().Int64Var(&size, "size", 64, "image size in MiB")
	cmd.Flags().StringVar(&label, "label", "RVFM", "volume label")
	return cmd
}

// Pack copies the tree at dir into a new image and returns the number of
// files copied.
func Pack(dir, image string, size int64, label string) (n int, err error) {
	if _, err := os.Stat(image); err == nil {
		return 0, fmt.Errorf("%s: already exists", image)
	}
	lib, err := sim.CreateImage(image, size, label)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := lib.Close(); err == nil {
			err = cerr
		}
	}()

	err = filepath.WalkDir(dir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, name)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			return lib.Mkdir(rel)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := copyFile(lib, rel, name); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

func copyFile(lib *sim.ImageLibrary, dst, src string) error {
	r, err := os.Open(src)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := lib.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("%s: %w", dst, err)
	}
	return w.Close()
}
