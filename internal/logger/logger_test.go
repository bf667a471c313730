package logger

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInit(t *testing.T) {
	Init()
	assert.NotNil(t, InfoLogger)
	assert.NotNil(t, ErrorLogger)
	assert.NotNil(t, DebugLogger)
}

func TestInfo(t *testing.T) {
	var buf bytes.Buffer
	old := InfoLogger
	InfoLogger = log.New(&buf, "INFO: ", 0)
	defer func() { InfoLogger = old }()

	Info("test message")
	Infof("formatted %d", 42)

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "formatted 42")
}

func TestError(t *testing.T) {
	var buf bytes.Buffer
	old := ErrorLogger
	ErrorLogger = log.New(&buf, "ERROR: ", 0)
	defer func() { ErrorLogger = old }()

	Error("test error")
	Errorf("formatted %s", "error")

	output := buf.String()
	assert.Contains(t, output, "test error")
	assert.Contains(t, output, "formatted error")
}

func TestDebug(t *testing.T) {
	var buf bytes.Buffer
	old := DebugLogger
	DebugLogger = log.New(&buf, "DEBUG: ", 0)
	defer func() { DebugLogger = old }()

	Debug("test debug")
	Debugf("formatted %v", true)

	output := buf.String()
	assert.Contains(t, output, "test debug")
	assert.Contains(t, output, "formatted true")
}
