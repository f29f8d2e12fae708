// Package table converts fleet data into rows for terminal tables.
package table

import (
	"fmt"
	"strings"

	"github.com/agentstation/fleetmap/internal/cmd/emoji"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// Align represents column alignment in tables.
type Align int

const (
	// AlignDefault uses the default alignment (skip).
	AlignDefault Align = iota
	// AlignLeft aligns content to the left.
	AlignLeft
	// AlignCenter centers content.
	AlignCenter
	// AlignRight aligns content to the right.
	AlignRight
)

// Data represents table formatting data to avoid import cycles.
type Data struct {
	Headers         []string
	Rows            [][]string
	ColumnAlignment []Align // Optional: column alignment
}

// dash replaces an empty cell.
func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// Truncate shortens s to n runes, adding an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// FormatDays renders a days-until-expiry count.
func FormatDays(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("%dd ago", -days)
	case days == 0:
		return "today"
	default:
		return fmt.Sprintf("%dd", days)
	}
}

// FormatConfidence renders a confidence as a percentage.
func FormatConfidence(c float64) string {
	return fmt.Sprintf("%.0f%%", c*100)
}

// StatusSymbol returns the marker for a category status.
func StatusSymbol(s vehicles.Status) string {
	switch s {
	case vehicles.StatusCurrent:
		return emoji.Success
	case vehicles.StatusExpiringSoon:
		return emoji.Warning
	case vehicles.StatusExpired:
		return emoji.Error
	case vehicles.StatusMissing:
		return emoji.Optional
	default:
		return emoji.Unknown
	}
}

// FormatCategory renders one category as "✓ 120d" or "- missing".
func FormatCategory(cs vehicles.CategoryStatus) string {
	if cs.Status == vehicles.StatusMissing || cs.DaysUntilExpiry == nil {
		return StatusSymbol(cs.Status) + " " + string(cs.Status)
	}
	return StatusSymbol(cs.Status) + " " + FormatDays(*cs.DaysUntilExpiry)
}
