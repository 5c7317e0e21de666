// Package stderrcap redirects a process-wide file descriptor (normally fd 2)
// into a private temporary sink for the duration of one capture cycle.
//
// Native code and the Go runtime alike write to fd 2 directly, so swapping
// os.Stderr is not enough: the descriptor slot itself is replaced with dup3
// and restored afterwards. Only one cycle may be active per descriptor.
package stderrcap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/daniellavrushin/pqc-tracer/log"
	"github.com/google/uuid"
)

var (
	// ErrCaptureActive is returned by Begin while a cycle is already active.
	// It means two exchanges overlapped on the same descriptor.
	ErrCaptureActive = errors.New("stderrcap: capture already active")
	// ErrSinkUnavailable wraps failures to create or install the sink file.
	ErrSinkUnavailable = errors.New("stderrcap: sink unavailable")
	// ErrUnsupported is returned on platforms without descriptor redirection.
	ErrUnsupported = errors.New("stderrcap: descriptor capture unsupported on this platform")
)

// TraceText is whatever landed on the descriptor during one capture cycle.
type TraceText string

// Controller owns the capture state for one descriptor slot.
type Controller struct {
	mu       sync.Mutex
	fd       int
	dir      string
	saved    int // duplicate of the original target, -1 when inactive
	sinkPath string
	started  time.Time
}

var (
	stderrCtl  *Controller
	stderrOnce sync.Once
)

// Stderr returns the process-wide controller for fd 2.
func Stderr() *Controller {
	stderrOnce.Do(func() {
		stderrCtl = New(2)
	})
	return stderrCtl
}

// New returns a controller for an arbitrary descriptor. Sinks are created in
// os.TempDir().
func New(fd int) *Controller {
	return &Controller{fd: fd, saved: -1}
}

// SetDir changes the directory sinks are created in. It has no effect on an
// active cycle.
func (c *Controller) SetDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dir = dir
}

// FD reports the descriptor slot this controller manages.
func (c *Controller) FD() int { return c.fd }

// Active reports whether a capture cycle is in progress.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saved >= 0
}

// SinkPath returns the sink of the active cycle, or "" when inactive.
func (c *Controller) SinkPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sinkPath
}

// Begin starts a capture cycle. On any error the descriptor is untouched and
// the controller stays inactive.
func (c *Controller) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.saved >= 0 {
		return ErrCaptureActive
	}

	dir := c.dir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, sinkName())

	sink, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	}

	saved, err := redirect(int(sink.Fd()), c.fd)
	// the slot now holds its own reference to the sink
	_ = sink.Close()
	if err != nil {
		_ = os.Remove(path)
		return err
	}

	c.saved = saved
	c.sinkPath = path
	c.started = time.Now()
	log.Tracef("Capture of fd %d started, sink %s", c.fd, path)
	return nil
}

// End finishes the active cycle and returns the captured text. The
// descriptor is restored before the sink is touched; sink read or removal
// failures only cost the text. End without Begin returns "".
func (c *Controller) End() TraceText {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.saved < 0 {
		return ""
	}

	if err := restore(c.saved, c.fd); err != nil {
		log.Errorf("Failed to restore fd %d: %v", c.fd, err)
	}
	c.saved = -1

	path := c.sinkPath
	c.sinkPath = ""
	elapsed := time.Since(c.started)

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warnf("Capture sink %s unreadable: %v", path, err)
		data = nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warnf("Failed to remove capture sink %s: %v", path, err)
	}

	log.Tracef("Capture of fd %d ended after %v, %d bytes", c.fd, elapsed, len(data))
	return TraceText(data)
}

// Capture runs fn inside a capture cycle and always ends it, including when
// fn panics. If Begin fails fn is not run.
func (c *Controller) Capture(fn func() error) (text TraceText, err error) {
	if err := c.Begin(); err != nil {
		return "", err
	}
	defer func() {
		text = c.End()
	}()
	return "", fn()
}

func sinkName() string {
	return fmt.Sprintf("tls-trace-%d-%d-%s.txt", time.Now().UnixNano(), os.Getpid(), uuid.NewString())
}
