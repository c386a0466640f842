package cartloader

import (
	"github.com/clktmr/rvfm/hw"
)

// Cell is a completion cell: a device visible word which the device writes
// exactly once per command.
type Cell struct {
	buf *hw.Buffer
}

func NewCell(a *hw.Arena) (*Cell, error) {
	buf, err := a.Alloc(4)
	if err != nil {
		return nil, err
	}
	return &Cell{buf}, nil
}

// Free returns the cell's memory. It fails while a command targets the cell.
func (c *Cell) Free(a *hw.Arena) error {
	return a.Free(c.buf)
}

func (c *Cell) Addr() hw.Addr { return c.buf.Addr() }

// Reset sets the cell to None. It fails while a command targets the cell.
func (c *Cell) Reset() error {
	return c.buf.Store32(0, uint32(None))
}

func (c *Cell) Load() Result {
	return Result(c.buf.Load32(0))
}

// Poll reports if the device has written the cell.
func (c *Cell) Poll() bool {
	return c.Load() != None
}

func (c *Cell) IsError() bool {
	return c.Load().IsError()
}
