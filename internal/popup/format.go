package popup

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatCount abbreviates counts of a thousand and more: 1234 -> "1.2K",
// 3400000 -> "3.4M".
func FormatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// exactCount is shown next to abbreviated values.
func exactCount(n int64) string {
	if n < 1_000 {
		return ""
	}
	return humanize.Comma(n)
}
