package sheet

import "strings"

// The service encodes cell formatting as a positional descriptor: sixteen
// comma-separated slots where an empty slot inherits the sheet default. Only
// the slots this pipeline writes are modeled.
const (
	formatSlots    = 16
	slotTextColor  = 8
	slotBackground = 9
)

// CellFormat is a cell-format descriptor. Color values are the service's
// palette indexes, as decimal strings.
type CellFormat struct {
	TextColor  string
	Background string
}

// IsZero reports whether the format carries no styling.
func (f CellFormat) IsZero() bool {
	return f == CellFormat{}
}

// String renders the positional descriptor. A zero format renders as "".
func (f CellFormat) String() string {
	if f.IsZero() {
		return ""
	}
	slots := make([]string, formatSlots)
	slots[slotTextColor] = f.TextColor
	slots[slotBackground] = f.Background
	return strings.Join(slots, ",")
}

// ParseFormat splits a positional descriptor back into a CellFormat. Unknown
// slots are ignored; short descriptors read as unset.
func ParseFormat(s string) CellFormat {
	if s == "" {
		return CellFormat{}
	}
	slots := strings.Split(s, ",")
	var f CellFormat
	if len(slots) > slotTextColor {
		f.TextColor = slots[slotTextColor]
	}
	if len(slots) > slotBackground {
		f.Background = slots[slotBackground]
	}
	return f
}
