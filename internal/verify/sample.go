package verify

import (
	"fmt"
	"strings"
)

// maxSampleRows bounds the hexdump evidence kept in the record; longer dumps
// keep the first and last rows with an elision marker.
const maxSampleRows = 8

// countNonZeroRows counts 16-byte rows that are not the canonical all-zero
// row. A trailing partial row counts if any byte is set.
func countNonZeroRows(sample []byte) int {
	count := 0
	for off := 0; off < len(sample); off += RowSize {
		end := off + RowSize
		if end > len(sample) {
			end = len(sample)
		}
		if !isZeroRow(sample[off:end]) {
			count++
		}
	}
	return count
}

func isZeroRow(row []byte) bool {
	for _, b := range row {
		if b != 0 {
			return false
		}
	}
	return true
}

// renderSample formats the sample as fixed-width hexdump rows, bounded for
// the record.
func renderSample(sample []byte) string {
	var rows []string
	for off := 0; off < len(sample); off += RowSize {
		end := off + RowSize
		if end > len(sample) {
			end = len(sample)
		}
		rows = append(rows, formatRow(off, sample[off:end]))
	}

	if len(rows) <= maxSampleRows {
		return strings.Join(rows, "\n")
	}

	kept := make([]string, 0, maxSampleRows+1)
	kept = append(kept, rows[:maxSampleRows/2]...)
	kept = append(kept, fmt.Sprintf("... (%d rows omitted) ...", len(rows)-maxSampleRows))
	kept = append(kept, rows[len(rows)-maxSampleRows/2:]...)
	return strings.Join(kept, "\n")
}

func formatRow(offset int, row []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%08x ", offset)
	for _, v := range row {
		fmt.Fprintf(&b, " %02x", v)
	}
	return b.String()
}
