package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/clktmr/rvfm/hw/cartloader"
)

// ManifestName is the name of the manifest in every cart directory.
const ManifestName = "cart.json"

// DataFormat selects how a cart's data can be accessed through data slots.
type DataFormat string

const (
	DataNone     DataFormat = "none"
	DataFsRO     DataFormat = "fs-ro"
	DataFsRW     DataFormat = "fs-rw"
	DataBinaryRO DataFormat = "binary-ro"
	DataBinaryRW DataFormat = "binary-rw"
)

func (f DataFormat) IsFs() bool     { return f == DataFsRO || f == DataFsRW }
func (f DataFormat) IsBinary() bool { return f == DataBinaryRO || f == DataBinaryRW }

type DataSpec struct {
	Format   DataFormat `json:"format"`
	RootDir  string     `json:"root_dir,omitempty"`
	DataFile string     `json:"data_file,omitempty"`
}

// Manifest describes a single cart.
type Manifest struct {
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Developer    string    `json:"developer,omitempty"`
	DeveloperURL string    `json:"developer_url,omitempty"`
	Source       string    `json:"source,omitempty"`
	Icon         string    `json:"icon,omitempty"`
	Binary       string    `json:"binary"`
	Data         *DataSpec `json:"data,omitempty"`
}

var (
	ErrNoBinary   = errors.New("manifest: missing binary")
	ErrBadVersion = errors.New("manifest: version must be major.minor.revision")
	ErrBadFormat  = errors.New("manifest: unknown data format")
)

func ParseManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if m.Binary == "" {
		return nil, ErrNoBinary
	}
	if _, err := m.ParseVersion(); err != nil {
		return nil, err
	}
	if m.Data == nil {
		m.Data = &DataSpec{Format: DataNone}
	}
	switch m.Data.Format {
	case "":
		m.Data.Format = DataNone
	case DataNone, DataFsRO, DataFsRW, DataBinaryRO, DataBinaryRW:
	default:
		return nil, ErrBadFormat
	}
	return &m, nil
}

func (m *Manifest) ParseVersion() (v cartloader.Version, err error) {
	if m.Version == "" {
		return v, nil
	}
	var rest string
	n, _ := fmt.Sscanf(m.Version+" ", "%d.%d.%d%s", &v.Major, &v.Minor, &v.Revision, &rest)
	if n < 3 || rest != "" {
		return v, ErrBadVersion
	}
	return v, nil
}

// Cart is a cart found in a library.
type Cart struct {
	Dir      string
	Manifest *Manifest
}

func readManifest(lib Library, dir string) (*Manifest, error) {
	name, err := cleanJoin(dir, ManifestName)
	if err != nil {
		return nil, err
	}
	f, err := lib.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	return ParseManifest(io.NewSectionReader(f, 0, size))
}

// Record builds the cart's metadata record. A missing or undecodable icon is
// replaced by a blank one.
func (c *Cart) Record(lib Library) (*cartloader.Record, error) {
	m := c.Manifest
	rec := &cartloader.Record{
		Name:         m.Name,
		Developer:    m.Developer,
		DeveloperURL: m.DeveloperURL,
		SourceURL:    m.Source,
	}
	rec.Version, _ = m.ParseVersion()

	icon, err := c.icon(lib)
	if err != nil {
		for i := range rec.Icon {
			rec.Icon[i] = cartloader.DefaultPixel
		}
		return rec, err
	}
	for y := range cartloader.IconSize {
		for x := range cartloader.IconSize {
			rec.Icon[y*cartloader.IconSize+x] = cartloader.PackPixel(icon.At(x, y))
		}
	}
	return rec, nil
}

func (c *Cart) icon(lib Library) (*image.NRGBA, error) {
	if c.Manifest.Icon == "" {
		return nil, errors.New("no icon")
	}
	name, err := cleanJoin(c.Dir, c.Manifest.Icon)
	if err != nil {
		return nil, err
	}
	f, err := lib.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	src, _, err := image.Decode(io.NewSectionReader(f, 0, size))
	if err != nil {
		return nil, err
	}

	dst := image.NewNRGBA(image.Rect(0, 0, cartloader.IconSize, cartloader.IconSize))
	if src.Bounds().Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	}
	return dst, nil
}
