package cartloader

import (
	"errors"
	"strconv"
)

// Result is the value a device writes into a completion cell. Every value
// other than None and OK is an error and Result implements the error
// interface for these.
type Result uint32

const (
	None Result = iota // still pending, never terminal
	OK
	ErrorReadingDir
	CartIndexOutOfBounds
	FailedReadingBinary
	DataSlotIndexOutOfBounds
	NoCartLoaded
	FailedOpeningFile
	BadOperationForDataFormat
	FilenameReadError
	DataSlotNotOpen
	FailedReadingFile

	resultLast
)

// Results lists all defined results.
func Results() []Result {
	r := make([]Result, 0, resultLast)
	for v := None; v < resultLast; v++ {
		r = append(r, v)
	}
	return r
}

var resultNames = [...]string{
	"none", "ok", "error reading directory", "cart index out of bounds",
	"failed reading binary", "data slot index out of bounds",
	"no cart loaded", "failed opening file",
	"bad operation for data format", "filename read error",
	"data slot not open", "failed reading file",
}

// ErrPending is returned by Err for a cell that hasn't completed.
var ErrPending = errors.New("cartloader: command pending")

func (r Result) String() string {
	if r < resultLast {
		return resultNames[r]
	}
	return "result(" + strconv.FormatUint(uint64(r), 10) + ")"
}

func (r Result) Error() string {
	return "cartloader: " + r.String()
}

// IsError reports if r is neither None nor OK.
func (r Result) IsError() bool {
	return r != None && r != OK
}

// Err returns nil for OK, ErrPending for None and r itself otherwise.
func (r Result) Err() error {
	switch r {
	case OK:
		return nil
	case None:
		return ErrPending
	}
	return r
}
