// Package sanitize type-corrects ingested job records.
//
// The export format carries everything as text, and upstream data entry is
// not reliable: quantities arrive as "abc", dates as "None", and the odd job
// arrives with no work-order id at all. Undetected corruption here would
// poison every downstream numeric and date comparison, so this layer never
// raises: it degrades each bad value to a declared default and records the
// substitution for audit.
package sanitize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/epfab/asmtrack/pkg/exportcache"
	"github.com/epfab/asmtrack/pkg/exportfile"
	"github.com/epfab/asmtrack/pkg/model"
)

// Config declares which fields carry which types and what replaces a value
// that fails its type.
type Config struct {
	NumericFields  []string
	NumericDefault string
	DateFields     []string
	DateDefault    string
	DateLayouts    []string
}

// Sanitizer applies type corrections to cached export entries.
type Sanitizer struct {
	cfg Config
	seq int
}

// New returns a Sanitizer for the given declarations.
func New(cfg Config) *Sanitizer {
	if cfg.NumericDefault == "" {
		cfg.NumericDefault = "0"
	}
	if len(cfg.DateLayouts) == 0 {
		cfg.DateLayouts = []string{"1/2/2006", "01/02/2006", "2006-01-02"}
	}
	return &Sanitizer{cfg: cfg}
}

// Apply corrects entries in place and returns the ordered corrections trail.
//
// Rules:
//   - a blank work-order id gets a unique synthetic placeholder; downstream
//     joins need a non-null key, and dropping the job would hide the data
//     entry error instead of tracking it
//   - numeric fields failing coercion reset to the numeric default
//   - date fields failing every accepted layout reset to the date default
//   - values already satisfying their type are left untouched
func (s *Sanitizer) Apply(entries []exportcache.Entry) []model.Correction {
	var corrections []model.Correction

	for _, e := range entries {
		wo := strings.TrimSpace(e.Fields.Get(exportfile.KeyWorkOrder))
		if wo == "" {
			s.seq++
			wo = fmt.Sprintf("WO-AUTO-%d", s.seq)
			corrections = append(corrections, model.Correction{
				WorkOrder: wo,
				Field:     exportfile.KeyWorkOrder,
				Original:  e.Fields.Get(exportfile.KeyWorkOrder),
				Corrected: wo,
				Kind:      model.CorrectionWorkOrder,
			})
			e.Fields[exportfile.KeyWorkOrder] = wo
		}

		for _, field := range s.cfg.NumericFields {
			raw, ok := e.Fields[field]
			if !ok {
				continue
			}
			if _, numeric := ParseFloat(raw); numeric {
				continue
			}
			if raw == s.cfg.NumericDefault {
				continue
			}
			corrections = append(corrections, model.Correction{
				WorkOrder: wo,
				Field:     field,
				Original:  raw,
				Corrected: s.cfg.NumericDefault,
				Kind:      model.CorrectionNumeric,
			})
			e.Fields[field] = s.cfg.NumericDefault
		}

		for _, field := range s.cfg.DateFields {
			raw, ok := e.Fields[field]
			if !ok {
				continue
			}
			if _, valid := ParseDate(raw, s.cfg.DateLayouts); valid {
				continue
			}
			if raw == s.cfg.DateDefault {
				continue
			}
			corrections = append(corrections, model.Correction{
				WorkOrder: wo,
				Field:     field,
				Original:  raw,
				Corrected: s.cfg.DateDefault,
				Kind:      model.CorrectionDate,
			})
			e.Fields[field] = s.cfg.DateDefault
		}
	}

	return corrections
}

// ParseFloat coerces a free-text quantity. ok is false for anything that is
// not a finite number, including "", "abc", and the "None"/"nan"/"inf" null
// sentinels; strconv accepts the last two, but a NaN or infinite quantity is
// a data error, not a value the shortage comparisons can use.
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Float is ParseFloat with the shortage-comparison default: failures read as
// zero.
func Float(s string) float64 {
	v, _ := ParseFloat(s)
	return v
}

// ParseDate tries each accepted layout in order.
func ParseDate(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
