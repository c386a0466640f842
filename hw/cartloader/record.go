package cartloader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
)

const (
	StringLen  = 256
	IconSize   = 64
	RecordSize = 4*StringLen + IconSize*IconSize*4 + 3*4
)

// DefaultPixel fills icons of carts without a usable icon.
const DefaultPixel = 0xffff_ffff

var ErrShortRecord = errors.New("cartloader: short record")

type Version struct {
	Major, Minor, Revision uint32
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Revision)
}

// Record is the metadata of a single cart. Icon pixels are stored as
// R | G<<8 | B<<16 | A<<24.
type Record struct {
	Name         string
	Developer    string
	DeveloperURL string
	SourceURL    string
	Icon         [IconSize * IconSize]uint32
	Version      Version
}

// wire layout, packed little endian
type wireRecord struct {
	Name, Developer, DeveloperURL, SourceURL [StringLen]byte

	Icon [IconSize * IconSize]uint32

	Revision, Minor, Major uint32
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func putCString(dst []byte, s string) {
	n := copy(dst[:len(dst)-1], s)
	dst[n] = 0
}

func (r *Record) UnmarshalBinary(p []byte) error {
	if len(p) < RecordSize {
		return ErrShortRecord
	}
	var w wireRecord
	if _, err := binary.Decode(p, binary.LittleEndian, &w); err != nil {
		return err
	}
	r.Name = cstring(w.Name[:])
	r.Developer = cstring(w.Developer[:])
	r.DeveloperURL = cstring(w.DeveloperURL[:])
	r.SourceURL = cstring(w.SourceURL[:])
	r.Icon = w.Icon
	r.Version = Version{w.Major, w.Minor, w.Revision}
	return nil
}

// MarshalBinary encodes r in the device's layout. Strings are truncated to
// StringLen-1 bytes.
func (r *Record) MarshalBinary() ([]byte, error) {
	var w wireRecord
	putCString(w.Name[:], r.Name)
	putCString(w.Developer[:], r.Developer)
	putCString(w.DeveloperURL[:], r.DeveloperURL)
	putCString(w.SourceURL[:], r.SourceURL)
	w.Icon = r.Icon
	w.Revision, w.Minor, w.Major = r.Version.Revision, r.Version.Minor, r.Version.Major
	return binary.Append(make([]byte, 0, RecordSize), binary.LittleEndian, &w)
}

// IconImage returns the icon as an image.
func (r *Record) IconImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, IconSize, IconSize))
	for i, px := range r.Icon {
		img.Pix[i*4+0] = byte(px)
		img.Pix[i*4+1] = byte(px >> 8)
		img.Pix[i*4+2] = byte(px >> 16)
		img.Pix[i*4+3] = byte(px >> 24)
	}
	return img
}

// PackPixel converts c to the device's pixel format.
func PackPixel(c color.Color) uint32 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return uint32(n.R) | uint32(n.G)<<8 | uint32(n.B)<<16 | uint32(n.A)<<24
}
