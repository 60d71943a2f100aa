// Package bom derives the per-work-order readiness verdict: missing
// purchase/customer parts, PCB and stencil fabrication status, and purchase
// order numbers, from the per-job BOM and receiving exports merged with
// purchasing overage data.
package bom

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/epfab/asmtrack/pkg/model"
	"github.com/epfab/asmtrack/pkg/sanitize"
)

// BOM export field positions. The export is pipe-delimited with thirteen
// fixed positions per line.
const (
	posPartNumber = 0
	posMPN        = 1
	posAPIURL     = 2
	posDesc       = 3
	posDesignator = 4
	posDesigCount = 5
	posSource     = 6
	posLineNumber = 7
	posRequired   = 8
	posReceived   = 9
	posCompletion = 10
	posNotes      = 11
	posCustomer   = 12

	bomFieldCount = 13
)

// ParseBOM reads one BOM export and returns the lines tagged with the owning
// work order and quote. Lines with fewer than thirteen fields are malformed;
// they are skipped and counted, never fatal.
//
// Quantity fields are coerced on the way in: anything that fails numeric
// parsing ("", "abc", "None") reads as zero, matching the shortage
// comparison rules downstream.
func ParseBOM(r io.Reader, workOrder, quote string) (lines []model.BOMLine, skipped int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		raw := strings.ToValidUTF8(sc.Text(), "")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		fields := strings.Split(raw, "|")
		if len(fields) < bomFieldCount {
			skipped++
			continue
		}
		lines = append(lines, model.BOMLine{
			WorkOrder:        workOrder,
			Quote:            quote,
			PartNumber:       strings.TrimSpace(fields[posPartNumber]),
			MPN:              strings.TrimSpace(fields[posMPN]),
			Description:      strings.TrimSpace(fields[posDesc]),
			Designators:      strings.TrimSpace(fields[posDesignator]),
			RequiredQty:      sanitize.Float(fields[posRequired]),
			ReceivedQty:      sanitize.Float(fields[posReceived]),
			CompletionDate:   strings.TrimSpace(fields[posCompletion]),
			CustomerSupplied: parseCustomerFlag(fields[posCustomer]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, skipped, fmt.Errorf("scan bom export: %w", err)
	}
	return lines, skipped, nil
}

// ParseBOMFile parses the BOM export at path.
func ParseBOMFile(path, workOrder, quote string) ([]model.BOMLine, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open bom export: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParseBOM(f, workOrder, quote)
}

// parseCustomerFlag interprets the customer-supplied field: true/yes mark a
// customer part, false/no/blank a purchased one.
func parseCustomerFlag(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRUE", "YES", "Y", "1":
		return true
	default:
		return false
	}
}

// ParseReceiving extracts purchase-order numbers from a receiving export.
// The export is pipe-delimited; the first field of a line is a PO number
// when it parses as an integer, and anything else is ignored.
func ParseReceiving(r io.Reader) ([]int, error) {
	seen := make(map[int]bool)
	var pos []int

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		first := line
		if i := strings.IndexByte(line, '|'); i >= 0 {
			first = line[:i]
		}
		n, err := strconv.Atoi(strings.TrimSpace(first))
		if err != nil {
			continue
		}
		if !seen[n] {
			seen[n] = true
			pos = append(pos, n)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan receiving export: %w", err)
	}
	return pos, nil
}
