package display

import (
	"strings"
	"testing"
)

func TestTerm_FlushesOnLastChannel(t *testing.T) {
	var buf strings.Builder
	term := NewTerm(&buf, []string{"AIN0", "AIN1"})

	term.Render(0, []float64{1.5, -2.0, 0.25})
	if buf.Len() != 0 {
		t.Fatalf("flushed before the round completed: %q", buf.String())
	}

	term.Render(1, []float64{3.0})
	out := buf.String()
	if !strings.Contains(out, "AIN0") || !strings.Contains(out, "AIN1") {
		t.Errorf("missing channel names in %q", out)
	}
	if !strings.Contains(out, "0.2500") {
		t.Errorf("missing last value for AIN0 in %q", out)
	}
	if !strings.Contains(out, "min    -2.0000") {
		t.Errorf("missing min for AIN0 in %q", out)
	}
	if !strings.Contains(out, "(3 pts)") {
		t.Errorf("missing sample count in %q", out)
	}
}

func TestTerm_EmptySnapshotShowsPlaceholder(t *testing.T) {
	var buf strings.Builder
	term := NewTerm(&buf, []string{"AIN0"})

	term.Render(0, nil)
	if !strings.Contains(buf.String(), "--") {
		t.Errorf("expected placeholder for empty channel, got %q", buf.String())
	}
}

func TestTerm_IgnoresOutOfRangeChannel(t *testing.T) {
	var buf strings.Builder
	term := NewTerm(&buf, []string{"AIN0"})

	term.Render(5, []float64{1})
	if buf.Len() != 0 {
		t.Errorf("out-of-range channel produced output: %q", buf.String())
	}
}
