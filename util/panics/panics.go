package panics

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/kaspanet/btcconsensus/infrastructure/logger"
)

// flushTimeout bounds how long an exit waits for the log backend to flush
const flushTimeout = 5 * time.Second

// HandlePanic is meant to be deferred. It recovers a panic, logs it with the
// stack of the panicking goroutine and spawnStack, the stack of whoever
// spawned it if known, and exits the process.
func HandlePanic(log *logger.Logger, spawnStack []byte) {
	err := recover()
	if err == nil {
		return
	}
	stacks := [][]byte{debug.Stack()}
	if spawnStack != nil {
		stacks = append(stacks, spawnStack)
	}
	logAndExit(log, fmt.Sprintf("Fatal error: %+v", err), stacks...)
}

// GoroutineWrapperFunc returns a function that runs f in a new goroutine
// whose panics are logged to log with the stack of the spawning call
func GoroutineWrapperFunc(log *logger.Logger) func(f func()) {
	return func(f func()) {
		spawnStack := debug.Stack()
		go func() {
			defer HandlePanic(log, spawnStack)
			f()
		}()
	}
}

// Exit logs reason as critical, flushes the log and exits with status 1
func Exit(log *logger.Logger, reason string) {
	logAndExit(log, reason)
}

func logAndExit(log *logger.Logger, reason string, stacks ...[]byte) {
	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		log.Criticalf("Exiting: %s", reason)
		for i, stack := range stacks {
			log.Criticalf("Stack trace %d: %s", i, stack)
		}
		log.Backend().Close()
	}()

	select {
	case <-flushed:
	case <-time.After(flushTimeout):
		fmt.Fprintln(os.Stderr, "Couldn't flush the log before exiting")
	}
	os.Exit(1)
}
