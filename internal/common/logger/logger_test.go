package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestZapWrapper_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).
		Named("engine").
		WithFields(map[string]interface{}{"component": "listings"})

	log.Info("fetch complete", map[string]interface{}{"count": 3})
	log.WithError(errors.New("boom")).Error("fetch failed", nil)

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "engine", entries[0].LoggerName)
	assert.Equal(t, "listings", entries[0].ContextMap()["component"])
	assert.Equal(t, int64(3), entries[0].ContextMap()["count"])
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestMapToZapFields_Errors(t *testing.T) {
	assert.Nil(t, mapToZapFields(nil))

	fields := mapToZapFields(map[string]interface{}{"cause": errors.New("x")})
	assert.Len(t, fields, 1)
	assert.Equal(t, zapcore.ErrorType, fields[0].Type)
}

func TestNewStructured_FallsBack(t *testing.T) {
	log := NewStructured("info", "json", "/nonexistent-dir/for/sure/app.log")
	assert.NotNil(t, log)
	log.Info("still works", nil)
}

func TestNewNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	log.Debug("ignored", map[string]interface{}{"k": "v"})
	assert.NoError(t, log.Sync())
}
