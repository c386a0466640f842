// Package hw provides the hardware abstraction layer of the rvfm machine.
//
// Firmware never touches memory mapped registers directly. Every access goes
// through a [Bus], and every interrupt related operation through a [Core].
// A target backend implements both on real hardware, the sim package
// implements them on the host.
//
// Buffers handed to devices are described by [Buffer] and allocated from an
// [Arena]. A buffer can be leased to a device, during which the firmware may
// neither access nor free it.
package hw
