package crypto

import "runtime"

// Wipe zeroes every buffer passed to it. It is best-effort: copies made
// by the runtime or by callers are not reached.
//
//go:noinline
func Wipe(bufs ...[]byte) {
	for _, b := range bufs {
		clear(b)
	}
	runtime.KeepAlive(bufs)
}
