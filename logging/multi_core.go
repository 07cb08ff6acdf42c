package logging

import (
	"os"

	"go.uber.org/zap/zapcore"
)

// NewMultiCore tees console output with a rotating JSON log file. An empty
// filePath disables the file sink.
//
// Console output is colored text in dev mode and JSON otherwise; the file is
// always JSON so it can be shipped as-is.
func NewMultiCore(level zapcore.LevelEnabler, filePath string, isDev bool) zapcore.Core {
	console := zapcore.Lock(os.Stdout)
	if filePath == "" {
		return newConsoleCore(level, console, isDev)
	}
	return NewMultiCoreWithWriters(level, console, NewFileWriter(filePath), isDev)
}

// NewMultiCoreWithWriters is NewMultiCore with caller-supplied sinks.
func NewMultiCoreWithWriters(level zapcore.LevelEnabler, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), fileWriter, level)
	return zapcore.NewTee(newConsoleCore(level, consoleWriter, isDev), fileCore)
}

func newConsoleCore(level zapcore.LevelEnabler, w zapcore.WriteSyncer, isDev bool) zapcore.Core {
	var enc zapcore.Encoder
	if isDev {
		enc = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		enc = zapcore.NewJSONEncoder(NewEncoderConfig())
	}
	return zapcore.NewCore(enc, w, level)
}
