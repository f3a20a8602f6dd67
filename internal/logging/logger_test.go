package logging

import (
	"testing"

	"go.uber.org/zap"
)

func TestNew_Levels(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "WARN", "error"} {
		l, err := New(level)
		if err != nil {
			t.Errorf("level %q: unexpected error %v", level, err)
			continue
		}
		if l == nil {
			t.Errorf("level %q: nil logger", level)
		}
	}
}

func TestNew_ProductionRespectsLevel(t *testing.T) {
	l, err := New("warn")
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !l.Core().Enabled(zap.WarnLevel) {
		t.Error("warn should be enabled at warn level")
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New("chatty"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Error("expected a no-op logger for nil")
	}
	l := zap.NewExample()
	if OrNop(l) != l {
		t.Error("expected the given logger back")
	}
}
