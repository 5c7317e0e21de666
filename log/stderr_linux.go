//go:build linux

package log

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	origStderr     *os.File
	origStderrOnce sync.Once
)

// OrigStderr returns a private close-on-exec duplicate of fd 2 taken the
// first time it is called (package init). Writes through it keep reaching the
// terminal while fd 2 itself points at a capture sink.
func OrigStderr() *os.File {
	origStderrOnce.Do(func() {
		fd, err := unix.FcntlInt(uintptr(unix.Stderr), unix.F_DUPFD_CLOEXEC, 3)
		if err != nil {
			origStderr = os.Stderr
			return
		}
		origStderr = os.NewFile(uintptr(fd), "/dev/stderr")
	})
	return origStderr
}
