package shared

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
)

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()

	if len(a) != 36 {
		t.Errorf("expected uuid string of length 36, got %d", len(a))
	}
	if a == b {
		t.Error("expected distinct ids")
	}
}

func TestLoggerHelpers(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(buf)

	SetLogLevel(logger, log.DebugLevel)
	if logger.GetLevel() != log.DebugLevel {
		t.Errorf("expected debug level, got %v", logger.GetLevel())
	}

	child := WithLogger(logger, "component", "test")
	child.Info("hello")
	if !bytes.Contains(buf.Bytes(), []byte("component")) {
		t.Errorf("expected child logger fields in output, got %q", buf.String())
	}
}
