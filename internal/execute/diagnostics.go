package execute

import (
	"fmt"
	"strings"
	"time"
)

// CalculateDuration derives a human duration from two recorded timestamps.
// Timestamp parse failures report "unknown" rather than an error; execution
// success is never blocked on timing precision.
func CalculateDuration(start, end string) string {
	startT, err := time.Parse(TimeLayout, start)
	if err != nil {
		return "unknown"
	}
	endT, err := time.Parse(TimeLayout, end)
	if err != nil {
		return "unknown"
	}

	d := endT.Sub(startT)
	if d < 0 {
		return "unknown"
	}
	return FormatDuration(d)
}

// FormatDuration renders a duration at millisecond precision.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.3fs", d.Seconds())
	case d < time.Hour:
		m := int(d.Minutes())
		s := d.Seconds() - float64(m)*60
		return fmt.Sprintf("%dm %.3fs", m, s)
	default:
		h := int(d.Hours())
		m := int(d.Minutes()) - h*60
		s := d.Seconds() - float64(h)*3600 - float64(m)*60
		return fmt.Sprintf("%dh %dm %.3fs", h, m, s)
	}
}

// CountDiagnostics scans captured output for advisory error and warning
// lines. Matching is case-insensitive substring per line: "error" and
// "failed" count as I/O errors, "warning" counts as a warning.
func CountDiagnostics(output string) (ioErrors, warnings int) {
	for _, line := range strings.Split(output, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "failed") {
			ioErrors++
		}
		if strings.Contains(lower, "warning") {
			warnings++
		}
	}
	return ioErrors, warnings
}
