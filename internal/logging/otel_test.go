package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log/noop"
	"go.uber.org/zap/zapcore"
)

func TestNewDualCore_StderrOnly(t *testing.T) {
	cfg := NewDefaultConfig()

	core, err := newDualCore(cfg, nil, zapcore.AddSync(&syncBuffer{}))
	require.NoError(t, err)
	assert.NotNil(t, core)
}

func TestNewDualCore_OTELOnly(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputConfig{OTEL: true}

	core, err := newDualCore(cfg, noop.NewLoggerProvider(), nil)
	require.NoError(t, err)
	assert.False(t, core.Enabled(zapcore.DebugLevel))
}

func TestNewDualCore_OTELWithoutProvider(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputConfig{OTEL: true}

	_, err := newDualCore(cfg, nil, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least one output")
}
