// Package sheetsync renders pipeline state into tracking-sheet rows and
// replaces the sheet contents through batched delete and insert calls,
// preserving the columns humans type into across the replace.
package sheetsync

import (
	"sort"
	"strings"

	"github.com/epfab/asmtrack/pkg/model"
	"github.com/epfab/asmtrack/pkg/sheet"
)

// CaptureUserEntered snapshots the user-entered columns of every row before
// a destructive replace. Rows without a work-order id cannot be merged back
// and are skipped; rows whose user columns are all blank carry nothing worth
// preserving and are skipped too.
//
// The result is sorted by work order and is the pipeline's only record of
// what humans typed, so it is persisted before any row is deleted.
func CaptureUserEntered(s *sheet.Sheet, woColumn string, userColumns []string) []model.UserEnteredRow {
	woID := s.ColumnID(woColumn)
	if woID == 0 {
		return nil
	}

	colIDs := make(map[string]int64, len(userColumns))
	for _, title := range userColumns {
		if id := s.ColumnID(title); id != 0 {
			colIDs[title] = id
		}
	}
	if len(colIDs) == 0 {
		return nil
	}

	var out []model.UserEnteredRow
	for _, row := range s.Rows {
		wo := strings.TrimSpace(row.Value(woID))
		if wo == "" {
			continue
		}
		values := make(map[string]string, len(colIDs))
		for title, id := range colIDs {
			if v := row.Value(id); strings.TrimSpace(v) != "" {
				values[title] = v
			}
		}
		if len(values) == 0 {
			continue
		}
		out = append(out, model.UserEnteredRow{
			RowID:     row.ID,
			WorkOrder: wo,
			Values:    values,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].WorkOrder < out[j].WorkOrder })
	return out
}

// IndexUserEntered keys a snapshot by work order for merge-back. When the
// same work order appears on several rows the first one wins.
func IndexUserEntered(rows []model.UserEnteredRow) map[string]model.UserEnteredRow {
	idx := make(map[string]model.UserEnteredRow, len(rows))
	for _, r := range rows {
		if _, ok := idx[r.WorkOrder]; !ok {
			idx[r.WorkOrder] = r
		}
	}
	return idx
}
