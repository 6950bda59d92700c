package logger

import (
	"bytes"
	"strings"
	"testing"
)

type bufferCloser struct {
	bytes.Buffer
}

func (*bufferCloser) Close() error {
	return nil
}

func TestLoggerWritesAboveLevel(t *testing.T) {
	output := &bufferCloser{}
	backend := NewBackendWithFlags(0)
	err := backend.AddLogWriter(output, LevelTrace)
	if err != nil {
		t.Fatalf("AddLogWriter: %v", err)
	}
	err = backend.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	log := backend.Logger("TEST")
	log.SetLevel(LevelInfo)
	log.Debugf("hidden %d", 1)
	log.Infof("shown %d", 2)
	log.Warn("warned")
	backend.Close()

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("TestLoggerWritesAboveLevel: Expected 2 lines, found: %d: %q", len(lines), output.String())
	}
	if !strings.HasSuffix(lines[0], "[INF] TEST: shown 2") {
		t.Fatalf("TestLoggerWritesAboveLevel: unexpected first line %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "[WRN] TEST: warned") {
		t.Fatalf("TestLoggerWritesAboveLevel: unexpected second line %q", lines[1])
	}
}

func TestLoggerDropsWhenNotRunning(t *testing.T) {
	backend := NewBackendWithFlags(0)
	log := backend.Logger("TEST")
	log.SetLevel(LevelTrace)

	// Must neither block nor queue an entry nobody will write
	log.Infof("nobody listens")
	if len(backend.writeChan) != 0 {
		t.Fatalf("TestLoggerDropsWhenNotRunning: Expected no queued entries, found: %d", len(backend.writeChan))
	}
}

func TestBackendCloseTwice(t *testing.T) {
	output := &bufferCloser{}
	backend := NewBackendWithFlags(0)
	err := backend.AddLogWriter(output, LevelInfo)
	if err != nil {
		t.Fatalf("AddLogWriter: %v", err)
	}
	err = backend.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	log := backend.Logger("TEST")
	log.SetLevel(LevelInfo)
	log.Info("before close")
	backend.Close()
	backend.Close()

	// Dropped since the backend is closed
	log.Info("after close")
	if strings.Contains(output.String(), "after close") || !strings.Contains(output.String(), "before close") {
		t.Fatalf("TestBackendCloseTwice: unexpected output %q", output.String())
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input         string
		expectedLevel Level
		expectedOK    bool
	}{
		{"trace", LevelTrace, true},
		{"DBG", LevelDebug, true},
		{"info", LevelInfo, true},
		{"wrn", LevelWarn, true},
		{"error", LevelError, true},
		{"critical", LevelCritical, true},
		{"off", LevelOff, true},
		{"banana", LevelInfo, false},
	}
	for _, test := range tests {
		level, ok := LevelFromString(test.input)
		if level != test.expectedLevel || ok != test.expectedOK {
			t.Errorf("TestLevelFromString: %s: Expected (%s, %t), found: (%s, %t)",
				test.input, test.expectedLevel, test.expectedOK, level, ok)
		}
	}
}

func TestParseAndSetLogLevels(t *testing.T) {
	log := RegisterSubSystem("TPLL")

	err := ParseAndSetLogLevels("TPLL=debug")
	if err != nil {
		t.Fatalf("ParseAndSetLogLevels: %v", err)
	}
	if log.Level() != LevelDebug {
		t.Fatalf("TestParseAndSetLogLevels: Expected %s, found: %s", LevelDebug, log.Level())
	}

	err = ParseAndSetLogLevels("NOSUCHSUBSYSTEM=debug")
	if err == nil {
		t.Fatalf("TestParseAndSetLogLevels: expected an error for an unknown subsystem")
	}

	err = ParseAndSetLogLevels("banana")
	if err == nil {
		t.Fatalf("TestParseAndSetLogLevels: expected an error for an invalid level")
	}

	err = ParseAndSetLogLevels("off")
	if err != nil {
		t.Fatalf("ParseAndSetLogLevels: %v", err)
	}
	if log.Level() != LevelOff {
		t.Fatalf("TestParseAndSetLogLevels: Expected %s, found: %s", LevelOff, log.Level())
	}
}
