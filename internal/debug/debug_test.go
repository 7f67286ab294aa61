package debug

import (
	"bytes"
	"strings"
	"testing"
)

func capture(t *testing.T, lvl int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	Init(lvl)
	t.Cleanup(func() {
		Init(LevelOff)
	})
	return &buf
}

func TestInit_OffProducesNoOutput(t *testing.T) {
	buf := capture(t, LevelOff)
	Info("hidden %d", 1)
	Trace("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output at level off, got %q", buf.String())
	}
}

func TestLevelGating(t *testing.T) {
	buf := capture(t, LevelLive)
	Info("info line")
	Move("INFOCUS", 12, true)
	Verbose("verbose line")
	GPIO("WritePin", 17, true)

	out := buf.String()
	if !strings.Contains(out, "[INFO] info line") {
		t.Errorf("missing info line in %q", out)
	}
	if !strings.Contains(out, "Move INFOCUS: 12 pulses (backlash=true)") {
		t.Errorf("missing move line in %q", out)
	}
	if strings.Contains(out, "verbose line") {
		t.Errorf("verbose line should be filtered at live level: %q", out)
	}
	if strings.Contains(out, "[GPIO]") {
		t.Errorf("GPIO trace should be filtered at live level: %q", out)
	}
}

func TestPrefix(t *testing.T) {
	buf := capture(t, LevelInfo)
	Info("hello")
	if !strings.HasPrefix(buf.String(), "[focuser] ") {
		t.Errorf("output should start with prefix, got %q", buf.String())
	}
}

func TestPinReadback(t *testing.T) {
	buf := capture(t, LevelVerbose)
	Pin("STEP", 17, 1, 0)
	if !strings.Contains(buf.String(), "STEP #17 = 1 (read 0)") {
		t.Errorf("unexpected pin line %q", buf.String())
	}
}

func TestLevel(t *testing.T) {
	capture(t, LevelVerbose)
	if Level() != LevelVerbose {
		t.Errorf("Level() = %d, want %d", Level(), LevelVerbose)
	}
}

func TestSection(t *testing.T) {
	buf := capture(t, LevelInfo)
	Section("Configuration")
	if buf.Len() != 0 {
		t.Errorf("section printed below verbose level: %q", buf.String())
	}
	buf = capture(t, LevelVerbose)
	Section("Configuration")
	if !strings.Contains(buf.String(), "  Configuration") {
		t.Errorf("section title missing: %q", buf.String())
	}
}
