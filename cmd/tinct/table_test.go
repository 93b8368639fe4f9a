package main

import (
	"strings"
	"testing"
	"time"
)

func TestOutcomeDetail(t *testing.T) {
	if got := outcomeDetail("/out/a_colorized.png", ""); got != "/out/a_colorized.png" {
		t.Fatalf("outcomeDetail for success = %q", got)
	}
	if got := outcomeDetail("", "external error: invoking transform: boom"); got != "external error: invoking transform: boom" {
		t.Fatalf("outcomeDetail for failure = %q", got)
	}
}

func TestFormatItemDuration(t *testing.T) {
	if got := formatItemDuration(0); got != "" {
		t.Fatalf("zero duration = %q, want blank", got)
	}
	if got := formatItemDuration(1234567 * time.Microsecond); got != "1.235s" {
		t.Fatalf("duration = %q", got)
	}
}

func TestFormatPercent(t *testing.T) {
	if got := formatPercent(1); got != "100.0%" {
		t.Fatalf("formatPercent(1) = %q", got)
	}
	if got := formatPercent(2.0 / 3.0); got != "66.7%" {
		t.Fatalf("formatPercent(2/3) = %q", got)
	}
}

func TestReportRendersRows(t *testing.T) {
	rep := newReport("Input", "State", "Duration", "Result")
	rep.addRow("sketch.png", "completed", "1.2s", "/out/sketch_colorized.png")
	rep.addRow("broken.png", "failed", "", "decode failed")

	rendered := rep.render()
	for _, want := range []string{"INPUT", "sketch.png", "completed", "broken.png", "decode failed"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("rendered report missing %q:\n%s", want, rendered)
		}
	}
}
