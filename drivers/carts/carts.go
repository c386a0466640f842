// Package carts enumerates the cart library and loads carts.
//
// Records are fetched through the cart loader into arena memory. Labels are
// folded to ASCII so the picker's bitmap font can render them.
package carts

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/sigurn/crc8"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/clktmr/rvfm/hw"
	"github.com/clktmr/rvfm/hw/cartloader"
)

var recordCRC8 = crc8.MakeTable(crc8.CRC8)

// Directory issues enumeration and load commands through a dispatcher.
type Directory struct {
	d     *cartloader.Dispatcher
	arena *hw.Arena
	count int
}

func New(d *cartloader.Dispatcher, arena *hw.Arena) *Directory {
	return &Directory{d: d, arena: arena}
}

func (dir *Directory) run(cmd func(c *cartloader.Cell) cartloader.Command) error {
	cell, err := cartloader.NewCell(dir.arena)
	if err != nil {
		return err
	}
	defer cell.Free(dir.arena)
	_, err = dir.d.Run(cmd(cell))
	return err
}

// Enumerate rescans the library and returns the number of carts found.
func (dir *Directory) Enumerate() (int, error) {
	err := dir.run(func(c *cartloader.Cell) cartloader.Command {
		return cartloader.Enumerate(c)
	})
	if err != nil {
		return 0, fmt.Errorf("carts: enumerate: %w", err)
	}
	dir.count = int(dir.d.CartCount())
	return dir.count, nil
}

// Count returns the number of carts found by the last Enumerate.
func (dir *Directory) Count() int { return dir.count }

// Metadata reads the record of cart i.
func (dir *Directory) Metadata(i int) (*cartloader.Record, error) {
	buf, err := dir.arena.Alloc(cartloader.RecordSize)
	if err != nil {
		return nil, err
	}
	defer dir.arena.Free(buf)

	err = dir.run(func(c *cartloader.Cell) cartloader.Command {
		return cartloader.ReadMetadata(uint32(i), buf, c)
	})
	if err != nil {
		return nil, fmt.Errorf("carts: metadata %d: %w", i, err)
	}

	raw := make([]byte, cartloader.RecordSize)
	if _, err := buf.ReadAt(raw, 0); err != nil {
		return nil, err
	}
	rec := new(cartloader.Record)
	if err := rec.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return rec, nil
}

// List enumerates and reads all records. It stops at the first failing
// record.
func (dir *Directory) List() ([]*cartloader.Record, error) {
	n, err := dir.Enumerate()
	if err != nil {
		return nil, err
	}
	recs := make([]*cartloader.Record, 0, n)
	for i := range n {
		rec, err := dir.Metadata(i)
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Load replaces the running program with cart i. It only returns if loading
// failed, in which case the caller keeps running.
func (dir *Directory) Load(i int) error {
	err := dir.run(func(c *cartloader.Cell) cartloader.Command {
		return cartloader.LoadCart(uint32(i), c)
	})
	if err != nil {
		return fmt.Errorf("carts: load %d: %w", i, err)
	}
	return nil
}

// Digest identifies a record across enumerations.
func Digest(rec *cartloader.Record) uint8 {
	raw, _ := rec.MarshalBinary()
	return crc8.Checksum(raw, recordCRC8)
}

// Find returns the index of the record with digest sum, or -1.
func Find(recs []*cartloader.Record, sum uint8) int {
	for i, rec := range recs {
		if Digest(rec) == sum {
			return i
		}
	}
	return -1
}

var fold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Label returns s reduced to printable ASCII. Accents are dropped, other
// characters are replaced by '?'.
func Label(s string) string {
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return '?'
		}
		return r
	}, folded)
}
