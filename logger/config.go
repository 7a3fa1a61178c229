package logger

import (
	"go.uber.org/zap/zapcore"
)

// Config selects how and where logs are written.
type Config struct {
	Format string        `toml:"format" mapstructure:"format"`
	Level  zapcore.Level `toml:"level" mapstructure:"level"`

	// File, when set, sends logs to a file rotated after MaxSizeMB
	// megabytes, keeping MaxBackups old files.
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max-size-mb" mapstructure:"max-size-mb"`
	MaxBackups int    `toml:"max-backups" mapstructure:"max-backups"`
}

// NewConfig returns a new instance of Config with defaults.
func NewConfig() Config {
	return Config{
		Format:     "auto",
		Level:      zapcore.InfoLevel,
		MaxSizeMB:  100,
		MaxBackups: 3,
	}
}
