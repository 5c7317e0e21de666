//go:build !linux

package stderrcap

func redirect(sinkFd, slot int) (int, error) {
	return -1, ErrUnsupported
}

func restore(saved, slot int) error {
	return ErrUnsupported
}
