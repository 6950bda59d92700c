package logger

import "strings"

// Level is the level at which a logger is configured. All messages sent
// to a level which is below the current level are filtered.
type Level uint32

// Level constants.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

// levelTags are the tags written in log lines, indexed by level
var levelTags = [...]string{"TRC", "DBG", "INF", "WRN", "ERR", "CRT", "OFF"}

// levelNames maps the names accepted on the command line to their level.
// Both the long names and the tags are accepted.
var levelNames = map[string]Level{
	"trace":    LevelTrace,
	"debug":    LevelDebug,
	"info":     LevelInfo,
	"warn":     LevelWarn,
	"error":    LevelError,
	"critical": LevelCritical,
	"off":      LevelOff,
}

func init() {
	for level, tag := range levelTags {
		levelNames[strings.ToLower(tag)] = Level(level)
	}
}

// LevelFromString returns the level named s, case insensitively. Unknown
// names give LevelInfo and false.
func LevelFromString(s string) (l Level, ok bool) {
	level, ok := levelNames[strings.ToLower(s)]
	if !ok {
		return LevelInfo, false
	}
	return level, true
}

// String returns the tag used for l in log lines. Anything at or above
// LevelOff is "OFF".
func (l Level) String() string {
	if l >= LevelOff {
		return "OFF"
	}
	return levelTags[l]
}
