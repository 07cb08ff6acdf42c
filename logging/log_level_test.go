package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLogLevelString(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{" warn ", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"Error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLogLevelString(tt.in, zapcore.InfoLevel); got != tt.want {
				t.Errorf("ParseLogLevelString(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefaultLevel(t *testing.T) {
	if DefaultLevel(true) != zapcore.DebugLevel || DefaultLevel(false) != zapcore.InfoLevel {
		t.Error("DefaultLevel mismatch")
	}
}
