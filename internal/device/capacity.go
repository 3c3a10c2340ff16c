package device

import (
	"strconv"
	"strings"
)

// logicalBlockSize is the fixed block size assumed for capacity conversion.
const logicalBlockSize = 512

// FormatCapacity converts a raw logical block count, given as a hex ("0x...")
// or decimal string, into coarse human units. The ladder is 1024-based and
// rounds down to an integer unit count: anything over 1024 GB reports whole
// TB, discarding the remainder. Unparseable input is returned as-is.
func FormatCapacity(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "Unknown"
	}

	var blocks uint64
	var err error
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		blocks, err = strconv.ParseUint(raw[2:], 16, 64)
	} else {
		blocks, err = strconv.ParseUint(raw, 10, 64)
	}
	if err != nil {
		return raw
	}

	bytes := blocks * logicalBlockSize
	gb := bytes >> 30
	if gb > 1024 {
		return strconv.FormatUint(gb>>10, 10) + "TB"
	}
	return strconv.FormatUint(gb, 10) + "GB"
}
