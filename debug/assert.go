//go:build debug

package debug

import "fmt"

const Enabled = true

func Assert(ok bool, msg string) {
	if !ok {
		panic("assertion failed: " + msg)
	}
}

func Assertf(ok bool, format string, args ...any) {
	if !ok {
		panic("assertion failed: " + fmt.Sprintf(format, args...))
	}
}

func AssertAligned(addr, align uint32, what string) {
	if addr&(align-1) != 0 {
		panic(fmt.Sprintf("assertion failed: %s %#08x not aligned to %d", what, addr, align))
	}
}
