package execute

import (
	"testing"
	"time"
)

func TestCalculateDuration(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		want  string
	}{
		{"milliseconds", "2025-06-01 12:00:00.000", "2025-06-01 12:00:00.250", "250ms"},
		{"seconds", "2025-06-01 12:00:00.000", "2025-06-01 12:00:01.500", "1.500s"},
		{"minutes", "2025-06-01 12:00:00.000", "2025-06-01 12:02:03.456", "2m 3.456s"},
		{"hours", "2025-06-01 12:00:00.000", "2025-06-01 13:01:02.000", "1h 1m 2.000s"},
		{"unparseable start", "not a time", "2025-06-01 12:00:01.000", "unknown"},
		{"unparseable end", "2025-06-01 12:00:00.000", "", "unknown"},
		{"missing millisecond field", "2025-06-01 12:00:00", "2025-06-01 12:00:01.000", "unknown"},
		{"end before start", "2025-06-01 12:00:05.000", "2025-06-01 12:00:00.000", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateDuration(tt.start, tt.end); got != tt.want {
				t.Errorf("CalculateDuration(%q, %q) = %q, want %q", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Millisecond, "5ms"},
		{999 * time.Millisecond, "999ms"},
		{time.Second, "1.000s"},
		{59*time.Second + 999*time.Millisecond, "59.999s"},
		{90 * time.Second, "1m 30.000s"},
		{2 * time.Hour, "2h 0m 0.000s"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestCountDiagnostics(t *testing.T) {
	tests := []struct {
		name         string
		output       string
		wantIOErrors int
		wantWarnings int
	}{
		{"empty", "", 0, 0},
		{"clean output", "Success formatting namespace 1\n", 0, 0},
		{"mixed case error", "ERROR: something\nIo Error on read\n", 2, 0},
		{"failed counts as error", "operation Failed\n", 1, 0},
		{"warnings", "warning: slow device\nWARNING again\n", 0, 2},
		{"error and warning on one line", "warning: write error detected\n", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ioErrs, warns := CountDiagnostics(tt.output)
			if ioErrs != tt.wantIOErrors {
				t.Errorf("ioErrors = %d, want %d", ioErrs, tt.wantIOErrors)
			}
			if warns != tt.wantWarnings {
				t.Errorf("warnings = %d, want %d", warns, tt.wantWarnings)
			}
		})
	}
}
