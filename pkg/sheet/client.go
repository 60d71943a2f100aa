// Package sheet is the client surface for the hosted tracking-sheet service:
// a grid of typed columns and server-assigned row IDs, mutated through
// batched delete and insert calls.
package sheet

import "context"

// Column is one sheet column. IDs are assigned by the service and stable for
// the life of the sheet; Index is the 1-based display position.
type Column struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Index int    `json:"index"`
}

// Cell is one value within a row, addressed by column ID. Format carries the
// service's cell-format descriptor and may be empty.
type Cell struct {
	ColumnID int64  `json:"columnId"`
	Value    string `json:"value"`
	Format   string `json:"format,omitempty"`
}

// Row is one sheet row. ID is zero on rows being inserted; the service
// assigns it.
type Row struct {
	ID    int64  `json:"id,omitempty"`
	Cells []Cell `json:"cells"`
}

// Sheet is a full sheet snapshot as returned by GetSheet.
type Sheet struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// ColumnID returns the ID of the column titled title, or 0 when absent.
func (s *Sheet) ColumnID(title string) int64 {
	for _, c := range s.Columns {
		if c.Title == title {
			return c.ID
		}
	}
	return 0
}

// Cell returns the cell for columnID, or an empty cell when the row has none.
func (r Row) Cell(columnID int64) (Cell, bool) {
	for _, c := range r.Cells {
		if c.ColumnID == columnID {
			return c, true
		}
	}
	return Cell{}, false
}

// Value returns the cell value for columnID, or "" when the row has none.
func (r Row) Value(columnID int64) string {
	c, _ := r.Cell(columnID)
	return c.Value
}

// Client is the sheet-service operation surface. Implementations must honor
// context cancellation on every call.
type Client interface {
	// GetSheet fetches the full sheet: columns plus all rows.
	GetSheet(ctx context.Context, sheetID string) (*Sheet, error)

	// DeleteRows removes the identified rows. Row IDs unknown to the
	// service fail the whole call.
	DeleteRows(ctx context.Context, sheetID string, rowIDs []int64) error

	// InsertRows appends rows to the bottom of the sheet and returns the
	// service-assigned row IDs in insertion order.
	InsertRows(ctx context.Context, sheetID string, rows []Row) ([]int64, error)
}
