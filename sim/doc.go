// Package sim simulates the rvfm machine on the host.
//
// A Machine provides RAM, the memory mapped peripherals and two cores which
// implement [hw.Core]. Firmware written against the hw package runs
// unmodified in a goroutine per core. Interrupts are delivered when a core
// halts or enables interrupts, which is the only point where firmware
// cooperatively waits.
package sim
