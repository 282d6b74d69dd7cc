package logging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampledLogger(core zapcore.Core, cfg SamplingConfig) *Logger {
	return &Logger{zap: zap.New(newSampledCore(core, cfg)), config: NewDefaultConfig()}
}

func TestNewSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	assert.Equal(t, core, newSampledCore(core, SamplingConfig{}))
}

func TestNewSampledCore_ErrorsNeverSampled(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := sampledLogger(core, SamplingConfig{Enabled: true, Tick: time.Second, Initial: 5})

	for i := 0; i < 100; i++ {
		logger.Error(context.Background(), "claims file unreadable")
	}

	assert.Len(t, observed.FilterMessage("claims file unreadable").All(), 100)
}

func TestNewSampledCore_InfoSampled(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := sampledLogger(core, SamplingConfig{Enabled: true, Tick: time.Minute, Initial: 5, Thereafter: 10})

	for i := 0; i < 100; i++ {
		logger.Info(context.Background(), "snippet embedded")
	}

	// 5 initial, then every 10th of the remaining 95.
	assert.Len(t, observed.FilterMessage("snippet embedded").All(), 14)
}

func TestLevelFilterCore_With(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	logger := &Logger{
		zap:    zap.New(&levelFilterCore{Core: core, min: zapcore.ErrorLevel, hasMin: true}),
		config: NewDefaultConfig(),
	}
	child := logger.With(zap.String("component", "test"))

	child.Info(context.Background(), "info message")
	child.Warn(context.Background(), "warn message")
	child.Error(context.Background(), "error message")

	logs := observed.All()
	assert.Len(t, logs, 1)
	assert.Equal(t, "error message", logs[0].Message)
	assert.Equal(t, "test", logs[0].ContextMap()["component"])
}

func TestLevelFilterCore_InfoIsNotUnbounded(t *testing.T) {
	core, _ := observer.New(TraceLevel)
	below := &levelFilterCore{Core: core, max: zapcore.InfoLevel, hasMax: true}

	assert.True(t, below.Enabled(zapcore.InfoLevel))
	assert.True(t, below.Enabled(TraceLevel))
	assert.False(t, below.Enabled(zapcore.WarnLevel))
}
