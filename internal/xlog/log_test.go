package xlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerModule_WorksWithoutInit(t *testing.T) {
	log := LoggerModule("test")
	assert.NotNil(t, log.Logger)
	log.Info("hello")
}

func TestInit_WithFileSink(t *testing.T) {
	dir := t.TempDir()
	Init(Options{Level: "debug", File: filepath.Join(dir, "beacon.log")})
	defer Init(Options{})

	log := LoggerModule("test")
	log.Info("written to file sink too")
}
