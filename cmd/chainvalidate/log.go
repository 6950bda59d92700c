package main

import (
	"path/filepath"

	"github.com/kaspanet/btcconsensus/infrastructure/logger"
)

var log = logger.RegisterSubSystem("CHVL")

// initLog attaches the log outputs to the backend and applies logLevel.
// Without a logDir everything goes to stdout.
func initLog(logDir, logLevel string) error {
	var err error
	if logDir == "" {
		err = logger.InitLogStdout(logger.LevelTrace)
	} else {
		err = logger.InitLog(filepath.Join(logDir, defaultLogFilename),
			filepath.Join(logDir, defaultErrLogFilename))
	}
	if err != nil {
		return err
	}
	return logger.ParseAndSetLogLevels(logLevel)
}
