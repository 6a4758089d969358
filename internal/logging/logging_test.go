package logging

import (
	"testing"

	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		enabled zap.AtomicLevel
		wantErr bool
	}{
		{"debug", "console", zap.NewAtomicLevelAt(zap.DebugLevel), false},
		{"info", "json", zap.NewAtomicLevelAt(zap.InfoLevel), false},
		{"warn", "", zap.NewAtomicLevelAt(zap.WarnLevel), false},
		{"loud", "json", zap.AtomicLevel{}, true},
		{"info", "xml", zap.AtomicLevel{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			log, err := New(tt.level, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !log.Core().Enabled(tt.enabled.Level()) {
				t.Errorf("expected %v to be enabled", tt.enabled.Level())
			}
			if log.Core().Enabled(tt.enabled.Level() - 1) {
				t.Errorf("expected %v to be disabled", tt.enabled.Level()-1)
			}
		})
	}
}
