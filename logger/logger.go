package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a debug level console logger writing to w.
func New(w io.Writer) *zap.Logger {
	return zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.Lock(zapcore.AddSync(w)),
		zapcore.DebugLevel,
	))
}

// New builds the logger described by c. Logs go to c.File when it is set
// and to defaultOutput otherwise. The "auto" format is console on a
// terminal and logfmt anywhere else. The returned close func releases the
// file.
func (c *Config) New(defaultOutput io.Writer) (*zap.Logger, func() error, error) {
	w := defaultOutput
	closer := func() error { return nil }
	if c.File != "" {
		lj := &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
		}
		w, closer = lj, lj.Close
	}

	format := c.Format
	if format == "auto" || format == "" {
		format = "logfmt"
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = "console"
		}
	}
	encoder, err := newEncoder(format)
	if err != nil {
		_ = closer()
		return nil, nil, err
	}

	return zap.New(zapcore.NewCore(
		encoder,
		zapcore.Lock(zapcore.AddSync(w)),
		c.Level,
	)), closer, nil
}

func newEncoder(format string) (zapcore.Encoder, error) {
	config := encoderConfig()
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(config), nil
	case "logfmt":
		return zaplogfmt.NewEncoder(config), nil
	case "console":
		return zapcore.NewConsoleEncoder(config), nil
	default:
		return nil, fmt.Errorf("unknown logging format: %s", format)
	}
}

func encoderConfig() zapcore.EncoderConfig {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format(time.RFC3339))
	}
	config.EncodeDuration = func(d time.Duration, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(d.String())
	}
	return config
}
