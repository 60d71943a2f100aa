package bom

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/epfab/asmtrack/pkg/model"
	"github.com/epfab/asmtrack/pkg/sanitize"
)

// Overage is a purchasing-determined required quantity keyed by MPN. Where
// present it supersedes the BOM export's stated requirement for that quote.
type Overage map[string]float64

// ParseOverage reads a purchasing overage table. The table must carry "MPN"
// and "Buy Quantity" columns (any position, case-insensitive header match);
// rows with a blank MPN or an uncoercible quantity are ignored.
func ParseOverage(r io.Reader) (Overage, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return Overage{}, nil
		}
		return nil, fmt.Errorf("read overage header: %w", err)
	}

	mpnCol, qtyCol := -1, -1
	for i, h := range header {
		switch strings.ToUpper(strings.TrimSpace(h)) {
		case "MPN":
			mpnCol = i
		case "BUY QUANTITY":
			qtyCol = i
		}
	}
	if mpnCol < 0 || qtyCol < 0 {
		return nil, fmt.Errorf("overage table missing MPN/Buy Quantity columns: %v", header)
	}

	ov := make(Overage)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read overage row: %w", err)
		}
		if len(rec) <= mpnCol || len(rec) <= qtyCol {
			continue
		}
		mpn := strings.TrimSpace(rec[mpnCol])
		if mpn == "" {
			continue
		}
		qty, ok := sanitize.ParseFloat(rec[qtyCol])
		if !ok {
			continue
		}
		ov[mpn] = qty
	}
	return ov, nil
}

// ParseOverageFile parses the overage table at path.
func ParseOverageFile(path string) (Overage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open overage table: %w", err)
	}
	defer func() { _ = f.Close() }()

	ov, err := ParseOverage(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return ov, nil
}

// ApplyOverages overwrites the required quantity of matching MPNs within
// each quote. Returns the number of lines rewritten.
func ApplyOverages(lines []model.BOMLine, byQuote map[string]Overage) int {
	applied := 0
	for i := range lines {
		ov, ok := byQuote[lines[i].Quote]
		if !ok {
			continue
		}
		qty, ok := ov[lines[i].MPN]
		if !ok {
			continue
		}
		lines[i].RequiredQty = qty
		applied++
	}
	return applied
}
