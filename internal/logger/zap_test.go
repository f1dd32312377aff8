package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"WARNING", zapcore.WarnLevel},
		{" error ", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := toZapLevel(tt.in); got != tt.want {
			t.Errorf("toZapLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGet_ReturnsSingleton(t *testing.T) {
	a := Get(InfoLevel)
	b := Get(DebugLevel)
	if a != b {
		t.Fatalf("expected the same logger instance")
	}
	if Nop() == nil || Nop().SugaredLogger == nil {
		t.Fatalf("Nop logger must be usable")
	}
}
