package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/influxdata/mlcore/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf)
	log.Debug("hello", zap.String("k", "v"))

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, `{"k": "v"}`)
}

func TestConfig_New(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		c := logger.NewConfig()
		c.Format = "json"

		log, closeFn, err := c.New(&buf)
		require.NoError(t, err)
		defer closeFn()

		log.Info("trained", zap.Int("rows", 3))
		log.Debug("hidden")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "trained", entry["msg"])
		assert.Equal(t, 3.0, entry["rows"])
		assert.NotContains(t, buf.String(), "hidden")
	})

	t.Run("logfmt", func(t *testing.T) {
		var buf bytes.Buffer
		c := logger.NewConfig()
		c.Format = "logfmt"
		c.Level = zapcore.DebugLevel

		log, _, err := c.New(&buf)
		require.NoError(t, err)
		log.Debug("trained", zap.String("model", "zeror"))

		assert.Contains(t, buf.String(), "msg=trained")
		assert.Contains(t, buf.String(), "model=zeror")
	})

	t.Run("auto", func(t *testing.T) {
		var buf bytes.Buffer
		c := logger.NewConfig()

		log, _, err := c.New(&buf)
		require.NoError(t, err)
		log.Info("not a terminal")

		assert.Contains(t, buf.String(), `msg="not a terminal"`)
	})

	t.Run("file", func(t *testing.T) {
		c := logger.NewConfig()
		c.File = filepath.Join(t.TempDir(), "mlcore.log")

		log, closeFn, err := c.New(os.Stderr)
		require.NoError(t, err)
		log.Info("to file")
		require.NoError(t, closeFn())

		b, err := os.ReadFile(c.File)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(b), "to file"))
	})

	t.Run("unknown", func(t *testing.T) {
		c := logger.NewConfig()
		c.Format = "xml"
		_, _, err := c.New(os.Stderr)
		assert.Error(t, err)
	})
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, logger.FromContext(context.Background()))

	log := zap.NewExample()
	ctx := logger.NewContextWithLogger(context.Background(), log)
	assert.Same(t, log, logger.FromContext(ctx))
}
