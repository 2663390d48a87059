// Package logging builds the zap loggers used by bp and bp-server.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how much is logged.
type Config struct {
	Debug bool
	// Dir receives logs/bloomplan.log; empty disables the file.
	Dir string
	// File overrides the log file path.
	File string
	// Level overrides the default level, warn or debug in debug mode.
	Level string
}

// Path returns the log file path for c, or "" when file logging is off.
func (c Config) Path() string {
	switch {
	case c.File != "":
		return c.File
	case c.Dir != "":
		return filepath.Join(c.Dir, "logs", "bloomplan.log")
	}
	return ""
}

// New returns a JSON logger writing to a rotating file. In debug mode it also
// writes a console encoding to stderr; otherwise stderr stays quiet.
// The returned func flushes and closes the file.
func New(c Config) (*zap.Logger, func(), error) {
	level := zap.WarnLevel
	if c.Debug {
		level = zap.DebugLevel
	}
	if c.Level != "" {
		l, err := zapcore.ParseLevel(c.Level)
		if err != nil {
			return nil, nil, err
		}
		level = l
	}

	var cores []zapcore.Core
	var rot *lumberjack.Logger
	if p := c.Path(); p != "" {
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return nil, nil, err
		}
		rot = &lumberjack.Logger{
			Filename:   p,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rot),
			level,
		))
	}
	if c.Debug {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(os.Stderr),
			level,
		))
	}

	opts := []zap.Option{}
	if c.Debug {
		opts = append(opts, zap.AddCaller())
	}
	log := zap.New(zapcore.NewTee(cores...), opts...).Named("bloomplan")
	closer := func() {
		_ = log.Sync()
		if rot != nil {
			_ = rot.Close()
		}
	}
	return log, closer, nil
}
