package log

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"log/syslog"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is the minimum level that will be emitted.
type Level int32

const (
	LevelError Level = iota
	LevelInfo
	LevelTrace
	LevelDebug
)

var (
	CurLevel  atomic.Int32
	errFile   *lumberjack.Logger
	errLogger *log.Logger
	errMu     sync.Mutex
)

// multi is a simple fan-out writer (stderr + optional syslog).
type multi struct {
	mu sync.Mutex
	ws []io.Writer
}

func (m *multi) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.ws {
		_, _ = w.Write(p)
	}
	return len(p), nil
}

var (
	mu         sync.Mutex
	base       = &multi{ws: []io.Writer{OrigStderr()}}
	buf        *bufio.Writer
	logger     *log.Logger
	flushStop  chan struct{}
	insta      = true
)

func init() {
	CurLevel.Store(int32(LevelInfo))
}

// Init sets the base writer, level, and instaflush behavior. A nil writer
// selects the original stderr, which stays valid while fd 2 is redirected.
func Init(w io.Writer, level Level, instaflush bool) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = OrigStderr()
	}
	base.mu.Lock()
	base.ws = []io.Writer{w}
	base.mu.Unlock()
	insta = instaflush
	CurLevel.Store(int32(level))
	rebuildLocked()
}

// Attach adds an extra sink (syslog, websocket hub, tests).
func Attach(w io.Writer) {
	if w == nil {
		return
	}
	base.mu.Lock()
	base.ws = append(base.ws, w)
	base.mu.Unlock()
}

// EnableSyslog connects to the local syslog and attaches it as a sink.
func EnableSyslog(tag string) error {
	sw, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, tag)
	if err != nil {
		return err
	}
	Attach(sw)
	return nil
}

// SetLevel changes the active level.
func SetLevel(l Level) { CurLevel.Store(int32(l)) }

// SetInstaflush toggles line buffering. Switching to instaflush flushes any
// pending buffered data immediately.
func SetInstaflush(v bool) {
	mu.Lock()
	defer mu.Unlock()
	if insta == v {
		return
	}
	insta = v
	if buf != nil && v {
		_ = buf.Flush()
	}
	rebuildLocked()
}

// Flush forces a flush when buffering is enabled.
func Flush() {
	mu.Lock()
	defer mu.Unlock()
	if buf != nil {
		_ = buf.Flush()
	}
}

// InitErrorFile mirrors every Errorf line into a size-rotated file.
func InitErrorFile(path string, maxSizeMB, maxBackups int) error {
	if path == "" {
		return nil
	}
	errMu.Lock()
	defer errMu.Unlock()

	if errFile != nil {
		_ = errFile.Close()
	}
	errFile = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   false,
	}
	errLogger = log.New(errFile, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	return nil
}

func CloseErrorFile() {
	errMu.Lock()
	defer errMu.Unlock()
	if errFile != nil {
		_ = errFile.Close()
		errFile = nil
		errLogger = nil
	}
}

// ---- printing ------------------------------------------------------------

// Errorf logs at error level and returns the formatted error, so call sites
// can log and propagate in one step. %w verbs keep their wrapping.
func Errorf(format string, a ...any) error {
	err := fmt.Errorf(format, a...)
	msg := "[ERROR] " + err.Error()
	if Level(CurLevel.Load()) >= LevelError {
		out("%s", msg)
	}

	errMu.Lock()
	if errLogger != nil {
		errLogger.Println(msg)
	}
	errMu.Unlock()

	return err
}

func Warnf(format string, a ...any) {
	if Level(CurLevel.Load()) >= LevelError {
		out("[WARN] "+format, a...)
	}
}

func Infof(format string, a ...any) {
	if Level(CurLevel.Load()) >= LevelInfo {
		out("[INFO] "+format, a...)
	}
}

func Tracef(format string, a ...any) {
	if Level(CurLevel.Load()) >= LevelTrace {
		out("[TRACE] "+format, a...)
	}
}

func Debugf(format string, a ...any) {
	if Level(CurLevel.Load()) >= LevelDebug {
		out("[DEBUG] "+format, a...)
	}
}

func out(format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		rebuildLocked()
	}
	logger.Printf(format, a...)
}

// ---- internals -----------------------------------------------------------

func rebuildLocked() {
	var w io.Writer = base
	if insta {
		buf = nil
		logger = log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)
		stopFlusherLocked()
		return
	}

	// buffered mode
	buf = bufio.NewWriterSize(w, 16*1024)
	logger = log.New(buf, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	startFlusherLocked()
}

func startFlusherLocked() {
	stopFlusherLocked()
	done := make(chan struct{})
	flushStop = done
	go func() {
		t := time.NewTicker(2 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				mu.Lock()
				if buf != nil {
					_ = buf.Flush()
				}
				mu.Unlock()
			}
		}
	}()
}

// stopFlusherLocked ends the flusher goroutine; Ticker.Stop alone never
// releases a range over its channel.
func stopFlusherLocked() {
	if flushStop != nil {
		close(flushStop)
		flushStop = nil
	}
}

// ParseLevel maps a --verbose value onto a Level. Unknown names fall back to
// info; "silent" disables everything including errors.
func ParseLevel(name string) Level {
	switch name {
	case "debug":
		return LevelDebug
	case "trace":
		return LevelTrace
	case "error":
		return LevelError
	case "silent":
		return -1
	default:
		return LevelInfo
	}
}

// Optional convenience for non-formatted messages.
func Info(a ...any)  { Infof("%s", fmt.Sprint(a...)) }
func Trace(a ...any) { Tracef("%s", fmt.Sprint(a...)) }
func Error(a ...any) { _ = Errorf("%s", fmt.Sprint(a...)) }
