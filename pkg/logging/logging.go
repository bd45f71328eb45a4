package logging

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// Verbose enables debug output.
	Verbose bool
	// File, when set, receives a copy of every log line.
	File string
}

// New builds the run logger: human-readable console lines on stderr, plus the
// run log file when configured. The returned func flushes the logger and
// closes the file.
func New(service string, opts Options) (*zap.Logger, func(), error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Verbose {
		level.SetLevel(zapcore.DebugLevel)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level),
	}

	closeFile := func() {}
	if opts.File != "" {
		sink, closeSink, err := zap.Open(opts.File)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "open log file %q", opts.File)
		}
		closeFile = closeSink
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), sink, level))
	}

	logger := zap.New(zapcore.NewTee(cores...)).Named(service)
	return logger, func() {
		_ = logger.Sync()
		closeFile()
	}, nil
}
