// Package boot is the machine's boot firmware.
//
// The boot core brings up interrupts and the timer, starts the second core
// playing the startup chime, enumerates the cart library and shows the cart
// picker. Selecting a cart hands the machine over to it. Failures while
// enumerating, reading metadata or loading a cart are fatal: they are
// reported on the debug port and the boot core halts.
package boot
