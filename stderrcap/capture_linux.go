//go:build linux

package stderrcap

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// redirect points slot at sinkFd and returns a close-on-exec duplicate of the
// slot's previous target.
func redirect(sinkFd, slot int) (int, error) {
	if sinkFd == slot {
		return -1, fmt.Errorf("%w: descriptor %d was closed before capture", ErrSinkUnavailable, slot)
	}
	saved, err := unix.FcntlInt(uintptr(slot), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("%w: dup fd %d: %v", ErrSinkUnavailable, slot, err)
	}
	if err := unix.Dup3(sinkFd, slot, 0); err != nil {
		_ = unix.Close(saved)
		return -1, fmt.Errorf("%w: dup3 onto fd %d: %v", ErrSinkUnavailable, slot, err)
	}
	return saved, nil
}

// restore puts saved back into slot and releases saved.
func restore(saved, slot int) error {
	err := unix.Dup3(saved, slot, 0)
	if cerr := unix.Close(saved); err == nil && cerr != nil {
		err = cerr
	}
	return err
}
