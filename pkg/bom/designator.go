package bom

import (
	"regexp"
	"sort"
	"strings"

	"github.com/epfab/asmtrack/pkg/model"
)

// leadingRange matches a hyphenated designator range with a leading letter,
// e.g. "C1-C9" or "R10 - R14".
var leadingRange = regexp.MustCompile(`^([A-Za-z]+[0-9]+)\s*-`)

// FirstDesignator extracts the first designator token from a free-text
// designator list. Splitters are tried in order: comma, semicolon,
// hyphenated range with a leading letter, space.
func FirstDesignator(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	if i := strings.IndexByte(s, ';'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	if m := leadingRange.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// designatorSet accumulates distinct first designators for one work order.
type designatorSet map[string]bool

func (d designatorSet) add(designator string) {
	if designator != "" {
		d[designator] = true
	}
}

// summary renders the set as a sorted, comma-joined list, collapsing to the
// overflow token above cap. This bounds the width of the sheet column.
func (d designatorSet) summary(cap int) string {
	if len(d) == 0 {
		return ""
	}
	if len(d) > cap {
		return model.DesignatorOverflow
	}
	out := make([]string, 0, len(d))
	for designator := range d {
		out = append(out, designator)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}
