// Package exportfile parses the per-job flat-text export format.
//
// Each job directory carries one export file of `key|value` lines. The format
// is produced by an upstream tool and is only loosely disciplined: values may
// carry trailing delimiters, free-text header lines carry no delimiter at
// all, and the bytes are not guaranteed to be valid UTF-8.
package exportfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Well-known export keys the pipeline depends on. Anything else the export
// carries is tolerated and passed through untouched.
const (
	KeyWorkOrder  = "WO#"
	KeyQuote      = "Quote#"
	KeyCustomer   = "Customer"
	KeyStatus     = "Status"
	KeyCreditHold = "Credit Hold"
	KeyOrderDate  = "Order Date"
	KeyShipDate   = "Ship Date"
	KeyTurnTime   = "Turn Time"
)

// CreditHoldYes is the export's affirmative hold marker.
const CreditHoldYes = "YES"

// Fields is the parsed key/value content of one export file.
type Fields map[string]string

// Parse reads an export stream into Fields.
//
// Rules, matching the upstream format:
//   - a line is split into key and value on the first '|' only
//   - trailing '|' characters are stripped from values
//   - lines without a delimiter are skipped (free-text headers)
//   - invalid UTF-8 sequences are dropped rather than failing the file
//
// Duplicate keys keep the last occurrence.
func Parse(r io.Reader) (Fields, error) {
	fields := make(Fields)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.ToValidUTF8(sc.Text(), "")
		key, value, ok := strings.Cut(line, "|")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.TrimRight(strings.TrimSpace(value), "|")
		fields[key] = strings.TrimSpace(value)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan export: %w", err)
	}
	return fields, nil
}

// ParseFile parses the export file at path.
func ParseFile(path string) (Fields, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer func() { _ = f.Close() }()

	fields, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fields, nil
}

// Get returns the value for key, or "" when absent.
func (f Fields) Get(key string) string {
	return f[key]
}

// OnHold reports whether the export marks the job on credit hold.
func (f Fields) OnHold() bool {
	return strings.EqualFold(strings.TrimSpace(f[KeyCreditHold]), CreditHoldYes)
}
