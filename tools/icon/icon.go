// Package icon converts images to cart icons.
package icon

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	_ "image/gif"
	_ "image/jpeg"

	"github.com/ericpauley/go-quantize/quantize"
	"github.com/spf13/cobra"
	"golang.org/x/image/draw"

	"github.com/clktmr/rvfm/hw/cartloader"
)

type options struct {
	out     string
	palette int
	dither  bool
}

func Command() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "icon <image>",
		Short: "Convert an image to a 64x64 cart icon",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			out := o.out
			if out == "" {
				out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".icon.png"
			}
			if err := Convert(args[0], out, o.palette, o.dither); err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), "wrote", out)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.out, "output", "o", "", "output file, defaults to <image>.icon.png")
	f.IntVar(&o.palette, "palette", 0, "reduce to this many colors, 0 keeps all")
	f.BoolVar(&o.dither, "dither", false, "enable Floyd-Steinberg error diffusion when reducing colors")
	return cmd
}

// Scale returns src scaled to the icon size.
func Scale(src image.Image) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, cartloader.IconSize, cartloader.IconSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Reduce quantizes img to at most n colors.
func Reduce(img image.Image, n int, dither bool) *image.Paletted {
	q := quantize.MedianCutQuantizer{}
	p := q.Quantize(make([]color.Color, 0, n), img)
	dst := image.NewPaletted(img.Bounds(), p)

	var d draw.Drawer = draw.Src
	if dither {
		d = draw.FloydSteinberg
	}
	d.Draw(dst, dst.Bounds(), img, img.Bounds().Min)
	return dst
}

func Convert(in, out string, palette int, dither bool) error {
	r, err := os.Open(in)
	if err != nil {
		return err
	}
	defer r.Close()
	src, _, err := image.Decode(r)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	var dst image.Image = Scale(src)
	if palette > 0 {
		dst = Reduce(dst, palette, dither)
	}

	w, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := png.Encode(w, dst); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
