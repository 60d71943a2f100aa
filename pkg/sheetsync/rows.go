package sheetsync

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/epfab/asmtrack/pkg/model"
	"github.com/epfab/asmtrack/pkg/sanitize"
	"github.com/epfab/asmtrack/pkg/sheet"
)

// Service palette indexes for the styling bands.
const (
	colorRed    = "22"
	colorYellow = "26"
	colorGreen  = "13"
)

// RowInput pairs one active work order with its readiness verdict.
type RowInput struct {
	Job  model.JobRecord
	View model.ReadinessView
}

// Config is the row-building policy, taken from the manifest sheet section.
type Config struct {
	// WOColumn is the sheet column holding the work-order id.
	WOColumn string

	// ColumnMapping maps pipeline field names to sheet column titles.
	// Pipeline fields whose mapped title is missing from the live sheet are
	// silently dropped.
	ColumnMapping map[string]string

	// UserEnteredColumns are merged back from the snapshot.
	UserEnteredColumns []string

	// DueSoonDays is the width of the due-soon styling band.
	DueSoonDays int

	// TurnTimeMax highlights turn times at or under this many days.
	TurnTimeMax float64

	// DateLayouts parse the sanitized date strings for ordering and the due
	// bands.
	DateLayouts []string
}

// Builder renders RowInputs into sheet rows against a live sheet's column
// layout.
type Builder struct {
	cfg Config

	// now is the clock for the due-date bands; replaced in tests.
	now func() time.Time
}

// NewBuilder returns a Builder.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg, now: time.Now}
}

// BuildRows renders one row per input in deterministic order: rows with an
// active purchase shortage first, then ascending due date with missing dates
// last, work order as the tiebreak. User-entered values from the snapshot
// are merged back by work order.
func (b *Builder) BuildRows(s *sheet.Sheet, inputs []RowInput, snapshot map[string]model.UserEnteredRow) []sheet.Row {
	ordered := append([]RowInput(nil), inputs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return b.less(ordered[i], ordered[j])
	})

	rows := make([]sheet.Row, 0, len(ordered))
	for _, in := range ordered {
		rows = append(rows, b.buildRow(s, in, snapshot))
	}
	return rows
}

func (b *Builder) less(x, y RowInput) bool {
	if x.View.MissingPurchaseParts != y.View.MissingPurchaseParts {
		return x.View.MissingPurchaseParts
	}
	xd, xok := b.parseDate(x.Job.ShipDate)
	yd, yok := b.parseDate(y.Job.ShipDate)
	if xok != yok {
		return xok
	}
	if xok && !xd.Equal(yd) {
		return xd.Before(yd)
	}
	return x.Job.WorkOrder < y.Job.WorkOrder
}

func (b *Builder) buildRow(s *sheet.Sheet, in RowInput, snapshot map[string]model.UserEnteredRow) sheet.Row {
	var row sheet.Row

	for field, title := range b.cfg.ColumnMapping {
		colID := s.ColumnID(title)
		if colID == 0 {
			continue
		}
		value := b.fieldValue(in, field)
		row.Cells = append(row.Cells, sheet.Cell{
			ColumnID: colID,
			Value:    value,
			Format:   b.fieldFormat(in, field).String(),
		})
	}

	if ue, ok := snapshot[in.Job.WorkOrder]; ok {
		for _, title := range b.cfg.UserEnteredColumns {
			colID := s.ColumnID(title)
			if colID == 0 {
				continue
			}
			if v, ok := ue.Values[title]; ok {
				row.Cells = append(row.Cells, sheet.Cell{ColumnID: colID, Value: v})
			}
		}
	}

	// Deterministic cell order within the row.
	sort.Slice(row.Cells, func(i, j int) bool {
		return row.Cells[i].ColumnID < row.Cells[j].ColumnID
	})
	return row
}

// fieldValue renders one pipeline field as its sheet cell value.
func (b *Builder) fieldValue(in RowInput, field string) string {
	switch field {
	case "WO#":
		return in.Job.WorkOrder
	case "Quote#":
		return in.Job.Quote
	case "Customer":
		return in.Job.Customer
	case "Status":
		return in.Job.Status
	case "Order Date":
		return in.Job.OrderDate
	case "Ship Date":
		return in.Job.ShipDate
	case "Turn Time":
		return strconv.FormatFloat(in.Job.TurnTime, 'f', -1, 64)
	case "Purchase Parts":
		return yesNo(in.View.MissingPurchaseParts)
	case "Customer Parts":
		return yesNo(in.View.MissingCustomerParts)
	case "Ref Des":
		return refDes(in.View)
	case "PCB Status":
		return in.View.PCBStatus
	case "Stencil Status":
		return in.View.StencilStatus
	case "PO Numbers":
		return joinInts(in.View.PONumbers)
	default:
		return in.Job.Extra[field]
	}
}

// fieldFormat applies the styling bands.
func (b *Builder) fieldFormat(in RowInput, field string) sheet.CellFormat {
	switch field {
	case "WO#":
		if in.Job.CreditHold {
			return sheet.CellFormat{Background: colorRed}
		}
	case "Purchase Parts":
		if in.View.MissingPurchaseParts {
			return sheet.CellFormat{Background: colorRed}
		}
		return sheet.CellFormat{Background: colorGreen}
	case "Customer Parts":
		if in.View.MissingCustomerParts {
			return sheet.CellFormat{Background: colorRed}
		}
		return sheet.CellFormat{Background: colorGreen}
	case "PCB Status":
		return fabFormat(in.View.PCBStatus)
	case "Stencil Status":
		return fabFormat(in.View.StencilStatus)
	case "Turn Time":
		if in.Job.TurnTime > 0 && in.Job.TurnTime <= b.cfg.TurnTimeMax {
			return sheet.CellFormat{Background: colorYellow}
		}
	case "Ship Date":
		return b.dueFormat(in.Job.ShipDate)
	}
	return sheet.CellFormat{}
}

// fabFormat bands a fabrication milestone: outstanding red, complete green.
// A job with no merged BOM carries no verdict and stays unstyled.
func fabFormat(status string) sheet.CellFormat {
	switch status {
	case model.FabComplete:
		return sheet.CellFormat{Background: colorGreen}
	case model.FabNone:
		return sheet.CellFormat{Background: colorRed}
	}
	return sheet.CellFormat{}
}

// dueFormat bands the due date: overdue red, inside the due-soon window
// yellow, otherwise unstyled. Unparseable dates are unstyled.
func (b *Builder) dueFormat(shipDate string) sheet.CellFormat {
	d, ok := b.parseDate(shipDate)
	if !ok {
		return sheet.CellFormat{}
	}
	// Parsed ship dates sit at UTC midnight, so "today" is the clock's
	// calendar date rebuilt in UTC; truncating the instant would shift the
	// band boundary by the zone offset.
	year, month, day := b.now().Date()
	today := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	switch {
	case d.Before(today):
		return sheet.CellFormat{Background: colorRed}
	case !d.After(today.AddDate(0, 0, b.cfg.DueSoonDays)):
		return sheet.CellFormat{Background: colorYellow}
	default:
		return sheet.CellFormat{}
	}
}

func (b *Builder) parseDate(s string) (time.Time, bool) {
	return sanitize.ParseDate(s, b.cfg.DateLayouts)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// refDes joins the purchase and customer designator summaries. Either set
// overflowing collapses the whole cell to the overflow token.
func refDes(v model.ReadinessView) string {
	if v.PurchaseDesignators == model.DesignatorOverflow ||
		v.CustomerDesignators == model.DesignatorOverflow {
		return model.DesignatorOverflow
	}
	parts := make([]string, 0, 2)
	if v.PurchaseDesignators != "" {
		parts = append(parts, v.PurchaseDesignators)
	}
	if v.CustomerDesignators != "" {
		parts = append(parts, v.CustomerDesignators)
	}
	return strings.Join(parts, ",")
}

func joinInts(ns []int) string {
	if len(ns) == 0 {
		return ""
	}
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
