//go:build !linux

package log

import "os"

// OrigStderr returns os.Stderr; descriptor capture is linux-only, so fd 2 is
// never redirected on other platforms.
func OrigStderr() *os.File {
	return os.Stderr
}
