package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type syncBuffer struct {
	bytes.Buffer
}

func (b *syncBuffer) Sync() error { return nil }

func newBufferLogger(t *testing.T, mutate func(*Config)) (*Logger, *syncBuffer) {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Format = "json"
	cfg.Sampling.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	buf := &syncBuffer{}
	logger, err := newLogger(cfg, nil, zapcore.AddSync(buf))
	require.NoError(t, err)
	return logger, buf
}

func decodeLines(t *testing.T, buf *syncBuffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"

	_, err := NewLogger(cfg, nil)
	assert.Error(t, err)
}

func TestLogger_JSONOutput(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)
	ctx := WithRequestID(context.Background(), "req-42")

	logger.Info(ctx, "quote verified", zap.Float64("confidence", 0.93))
	logger.Debug(ctx, "dropped below level")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "quote verified", lines[0]["msg"])
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "quotecheck", lines[0]["service"])
	assert.Equal(t, "req-42", lines[0]["request.id"])
	assert.Equal(t, 0.93, lines[0]["confidence"])
	assert.Contains(t, lines[0]["caller"], "logger_test.go")
}

func TestLogger_TraceLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, func(c *Config) { c.Level = TraceLevel })

	logger.Trace(context.Background(), "window scored")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "trace", lines[0]["level"])
}

func TestLogger_WithAndNamed(t *testing.T) {
	tl := NewTestLogger()
	child := tl.Named("indexer").With(zap.String("path", "a.txt"))

	child.Warn(context.Background(), "file skipped")

	tl.AssertLogged(t, zapcore.WarnLevel, "file skipped")
	tl.AssertField(t, "file skipped", "path", "a.txt")
	assert.Equal(t, "indexer", tl.All()[0].LoggerName)
}

func TestLogger_Underlying(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)

	logger.Underlying().Info("from zap")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0]["caller"], "logger_test.go")
}

func TestLogger_Sync(t *testing.T) {
	logger, _ := newBufferLogger(t, nil)
	assert.NoError(t, logger.Sync())
}
