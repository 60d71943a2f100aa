package credithold

import (
	"fmt"
	"strings"
)

// DeriveOrderNo derives the relational join key from a work-order id.
//
// Work orders are numbered "<order>-<job suffix>"; the order-management
// database keys on a fixed-width numeric order number. The suffix segment and
// any non-digit characters are stripped, then the digits are zero-padded to
// width. Returns "" when the id carries no digits (placeholder ids), which
// means the job cannot be joined and contributes only its file signal.
func DeriveOrderNo(workOrder string, width int) string {
	prefix := workOrder
	if i := strings.IndexByte(workOrder, '-'); i >= 0 {
		prefix = workOrder[:i]
	}

	var digits strings.Builder
	for _, r := range prefix {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return ""
	}
	s := digits.String()
	if len(s) >= width {
		return s
	}
	return fmt.Sprintf("%0*s", width, s)
}
