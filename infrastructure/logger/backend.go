package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jrick/logrotate/rotator"
	"github.com/pkg/errors"
)

const normalLogSize = 512

// defaultFlags is read from the LOGFLAGS environment variable. It is a
// variable rather than an init() assignment because BackendLog is built
// from it during variable initialization.
var defaultFlags = getDefaultFlags()

// Flags to modify Backend's behavior.
const (
	// LogFlagLongFile adds the full path and line number of the logging
	// callsite, e.g. /a/b/c/main.go:123.
	LogFlagLongFile uint32 = 1 << iota

	// LogFlagShortFile adds the file name and line number of the logging
	// callsite, e.g. main.go:123. Takes precedence over LogFlagLongFile.
	LogFlagShortFile
)

// getDefaultFlags parses LOGFLAGS, a comma separated list of "longfile"
// and "shortfile"
func getDefaultFlags() (flags uint32) {
	for _, f := range strings.Split(os.Getenv("LOGFLAGS"), ",") {
		switch strings.TrimSpace(f) {
		case "longfile":
			flags |= LogFlagLongFile
		case "shortfile":
			flags |= LogFlagShortFile
		}
	}
	return flags
}

// logsBuffer is the number of entries that can be queued before a logging
// call blocks on the writers
const logsBuffer = 64

// RotationOptions control when a log file is rolled and how many rolled
// files are kept
type RotationOptions struct {
	ThresholdKB int64
	MaxRolls    int
}

// DefaultRotationOptions rolls files at 100 MB and keeps the 8 last ones
var DefaultRotationOptions = RotationOptions{
	ThresholdKB: 100 * 1000,
	MaxRolls:    8,
}

// Backend is a logging backend. Subsystem loggers created from it send their
// entries to a single goroutine which writes them to every writer whose
// level allows it.
type Backend struct {
	flag      uint32
	isRunning uint32
	writers   []logWriter
	writeChan chan logEntry

	// done is closed once every queued entry was written
	done      chan struct{}
	closeOnce sync.Once
}

// NewBackendWithFlags returns a Backend that uses flags instead of the ones
// read from LOGFLAGS
func NewBackendWithFlags(flags uint32) *Backend {
	return &Backend{
		flag:      flags,
		writeChan: make(chan logEntry, logsBuffer),
		done:      make(chan struct{}),
	}
}

// NewBackend creates a new logger backend.
func NewBackend() *Backend {
	return NewBackendWithFlags(defaultFlags)
}

type logWriter struct {
	io.WriteCloser
	level Level
}

// AddLogWriter adds a writer that receives every entry at or above level
func (b *Backend) AddLogWriter(writer io.WriteCloser, level Level) error {
	if b.IsRunning() {
		return errors.New("can't add a log writer to a running logger")
	}
	b.writers = append(b.writers, logWriter{WriteCloser: writer, level: level})
	return nil
}

// AddLogFile adds a rotated file that receives every entry at or above
// level, using DefaultRotationOptions. The file and its directory are
// created if they don't exist.
func (b *Backend) AddLogFile(logFile string, level Level) error {
	return b.AddRotatedLogFile(logFile, level, DefaultRotationOptions)
}

// AddRotatedLogFile is AddLogFile with custom rotation options
func (b *Backend) AddRotatedLogFile(logFile string, level Level, options RotationOptions) error {
	if b.IsRunning() {
		return errors.New("can't add a log file to a running logger")
	}
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		err := os.MkdirAll(logDir, 0700)
		if err != nil {
			return errors.Wrapf(err, "failed to create log directory %s", logDir)
		}
	}
	r, err := rotator.New(logFile, options.ThresholdKB, false, options.MaxRolls)
	if err != nil {
		return errors.Wrapf(err, "failed to create file rotator for %s", logFile)
	}
	return b.AddLogWriter(r, level)
}

// Run starts writing queued entries in a separate goroutine. It may only be
// called once.
func (b *Backend) Run() error {
	if !atomic.CompareAndSwapUint32(&b.isRunning, 0, 1) {
		return errors.New("the logger is already running")
	}
	go func() {
		defer func() {
			if err := recover(); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Fatal error in logger.Backend goroutine: %+v\n", err)
				_, _ = fmt.Fprintf(os.Stderr, "Goroutine stacktrace: %s\n", debug.Stack())
			}
		}()
		b.runBlocking()
	}()
	return nil
}

func (b *Backend) runBlocking() {
	defer close(b.done)
	defer atomic.StoreUint32(&b.isRunning, 0)

	for entry := range b.writeChan {
		for _, writer := range b.writers {
			if entry.level >= writer.level {
				_, _ = writer.Write(entry.log)
			}
		}
	}
}

// IsRunning returns whether Run has been called
func (b *Backend) IsRunning() bool {
	return atomic.LoadUint32(&b.isRunning) != 0
}

// Close flushes the queued entries and closes every writer. Calling it more
// than once is a no-op.
func (b *Backend) Close() {
	b.closeOnce.Do(func() {
		wasRunning := atomic.SwapUint32(&b.isRunning, 0) != 0
		close(b.writeChan)
		if wasRunning {
			<-b.done
		}
		for _, writer := range b.writers {
			_ = writer.Close()
		}
	})
}

// Logger returns a new logger for a particular subsystem that writes to the
// Backend b. A tag describes the subsystem and is included in all log
// messages. The logger is off until its level is set.
func (b *Backend) Logger(subsystemTag string) *Logger {
	return &Logger{LevelOff, subsystemTag, b, b.writeChan}
}
