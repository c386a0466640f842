//go:build !debug

// Package debug has invariant checks for the bus and arena code. They panic
// when built with the debug tag and compile to nothing otherwise, since the
// firmware has no way to report a panic without the debug port.
package debug

// Enabled guards checks that are expensive to evaluate, which would otherwise
// survive in release builds.
const Enabled = false

// Assert panics with msg if ok is false.
func Assert(ok bool, msg string) {}

// Assertf is Assert with a formatted message. The arguments are still
// evaluated in release builds.
func Assertf(ok bool, format string, args ...any) {}

// AssertAligned panics if addr is not a multiple of align, which must be a
// power of two.
func AssertAligned(addr, align uint32, what string) {}
