package gpu

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Canvas implements pix.Driver for an image in memory by forwarding to
// x/image/draw.
type Canvas struct {
	dst  draw.Image
	fill image.Uniform
}

func NewCanvas(dst draw.Image) *Canvas {
	return &Canvas{dst: dst}
}

func (c *Canvas) Draw(r image.Rectangle, src image.Image, sp image.Point,
	mask image.Image, mp image.Point, op draw.Op) {
	draw.DrawMask(c.dst, r, src, sp, mask, mp, op)
}

func (c *Canvas) Fill(r image.Rectangle) {
	draw.Draw(c.dst, r, &c.fill, image.Point{}, draw.Src)
}

func (c *Canvas) SetColor(col color.Color) {
	c.fill.C = col
}

func (c *Canvas) SetDir(dir int) image.Rectangle {
	return c.dst.Bounds()
}

func (c *Canvas) Flush() {}

func (c *Canvas) Err(clear bool) error {
	return nil
}
