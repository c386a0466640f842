// Package cartloader implements the command/completion protocol of the
// cartridge loader device.
//
// A command is encoded into a small register file: up to six parameters
// followed by the opcode, whose write triggers execution. The device reports
// the outcome by writing a [Result] into a caller owned completion [Cell].
// Only one command can be outstanding, the [Dispatcher] serializes all
// callers.
//
//	cell, _ := cartloader.NewCell(arena)
//	res, err := d.Run(cartloader.Enumerate(cell))
package cartloader
