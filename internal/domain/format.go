package domain

import (
	"strconv"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with 1024-based units and at most two
// decimals, trailing zeros dropped: 0 -> "0 Bytes", 1536 -> "1.5 KB".
// Anything past GB stays in GB.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	unit := 0
	div := int64(1)
	for unit < len(sizeUnits)-1 && bytes >= div*1024 {
		div *= 1024
		unit++
	}

	value := float64(bytes) / float64(div)
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(value, 'f', 2, 64), 64)
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + sizeUnits[unit]
}

// FileCountLabel renders "1 file" / "N files".
func FileCountLabel(n int) string {
	if n == 1 {
		return "1 file"
	}
	return strconv.Itoa(n) + " files"
}
