package memlog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelGating(t *testing.T) {
	buf := &bytes.Buffer{}
	l := &defaultLogger{level: LevelWarn, output: buf}
	SetLogger(l, "")

	Debugf("hidden %v", 1)
	if buf.Len() != 0 {
		t.Errorf("expected debug to be suppressed at warn level, got %q", buf.String())
	}

	Warnf("shown %v", 2)
	if !strings.Contains(buf.String(), "shown 2") {
		t.Errorf("expected warn message, got %q", buf.String())
	}
}

func TestSetLoggerNilRestoresDefault(t *testing.T) {
	SetLogger(nil, "debug")
	buf := &bytes.Buffer{}
	if dl, ok := log.(*defaultLogger); ok {
		dl.output = buf
	} else {
		t.Fatalf("expected default logger to be installed")
	}
	Debugf("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected debug level to be enabled, got %q", buf.String())
	}
}
