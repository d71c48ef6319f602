package textutil

import (
	"strconv"
	"strings"
)

// Placeholder stands in for values that are unknown or unset in tables.
const Placeholder = "-"

// Cell returns s with surrounding space trimmed, or Placeholder when nothing
// is left.
func Cell(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return Placeholder
	}
	return s
}

// RatingCell formats a catalog rating with two decimals, or Placeholder when
// the catalog reported none.
func RatingCell(rating *float64) string {
	if rating == nil {
		return Placeholder
	}
	return strconv.FormatFloat(*rating, 'f', 2, 64)
}
