package sheetsync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/epfab/asmtrack/pkg/model"
	"github.com/epfab/asmtrack/pkg/sheet"
)

// SyncConfig bounds the row batches against the sheet API payload limits.
type SyncConfig struct {
	SheetID string

	DeleteBatchSize int
	InsertBatchSize int
}

// Result summarizes one sheet replace.
type Result struct {
	// Snapshot is the user-entered capture taken before any row was
	// deleted. It is returned even when a later step fails.
	Snapshot []model.UserEnteredRow `json:"snapshot"`

	RowsDeleted  int `json:"rows_deleted"`
	RowsInserted int `json:"rows_inserted"`
}

// Syncer replaces the tracking sheet's contents with freshly built rows.
type Syncer struct {
	client  sheet.Client
	builder *Builder
	cfg     SyncConfig
	log     *zap.Logger

	// PersistSnapshot, when set, receives the user-entered snapshot before
	// the first delete batch is issued. A persist failure aborts the replace
	// with the sheet untouched: until the snapshot is durable, the live rows
	// are the only copy of what humans typed.
	PersistSnapshot func([]model.UserEnteredRow) error
}

// NewSyncer returns a Syncer.
func NewSyncer(client sheet.Client, builder *Builder, cfg SyncConfig, log *zap.Logger) *Syncer {
	if cfg.DeleteBatchSize == 0 {
		cfg.DeleteBatchSize = 240
	}
	if cfg.InsertBatchSize == 0 {
		cfg.InsertBatchSize = 450
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{client: client, builder: builder, cfg: cfg, log: log}
}

// Replace performs the full sync sequence: fetch the sheet, capture and
// persist the user-entered snapshot, delete every existing row in batches,
// then insert the freshly built rows in batches.
//
// The sequence is deliberately destructive-last-resort ordered: nothing is
// deleted until the snapshot exists and PersistSnapshot has accepted it, and
// a failure mid-sequence aborts immediately so the partial state is visible
// rather than papered over. The snapshot taken so far is always returned.
func (s *Syncer) Replace(ctx context.Context, inputs []RowInput) (Result, error) {
	var res Result

	live, err := s.client.GetSheet(ctx, s.cfg.SheetID)
	if err != nil {
		return res, fmt.Errorf("fetch sheet: %w", err)
	}

	res.Snapshot = CaptureUserEntered(live, s.builder.cfg.WOColumn, s.builder.cfg.UserEnteredColumns)
	if s.PersistSnapshot != nil {
		if err := s.PersistSnapshot(res.Snapshot); err != nil {
			return res, fmt.Errorf("persist user-entered snapshot: %w", err)
		}
	}
	rows := s.builder.BuildRows(live, inputs, IndexUserEntered(res.Snapshot))

	s.log.Info("Replacing sheet contents",
		zap.String("sheet_id", s.cfg.SheetID),
		zap.Int("existing_rows", len(live.Rows)),
		zap.Int("new_rows", len(rows)),
		zap.Int("snapshot_rows", len(res.Snapshot)))

	ids := make([]int64, 0, len(live.Rows))
	for _, r := range live.Rows {
		ids = append(ids, r.ID)
	}
	for _, batch := range batchInt64(ids, s.cfg.DeleteBatchSize) {
		if err := s.client.DeleteRows(ctx, s.cfg.SheetID, batch); err != nil {
			return res, fmt.Errorf("delete rows (%d of %d removed): %w", res.RowsDeleted, len(ids), err)
		}
		res.RowsDeleted += len(batch)
	}

	for _, batch := range batchRows(rows, s.cfg.InsertBatchSize) {
		if _, err := s.client.InsertRows(ctx, s.cfg.SheetID, batch); err != nil {
			return res, fmt.Errorf("insert rows (%d of %d written): %w", res.RowsInserted, len(rows), err)
		}
		res.RowsInserted += len(batch)
	}

	return res, nil
}

func batchInt64(ids []int64, size int) [][]int64 {
	var out [][]int64
	for len(ids) > 0 {
		n := size
		if n > len(ids) {
			n = len(ids)
		}
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}

func batchRows(rows []sheet.Row, size int) [][]sheet.Row {
	var out [][]sheet.Row
	for len(rows) > 0 {
		n := size
		if n > len(rows) {
			n = len(rows)
		}
		out = append(out, rows[:n])
		rows = rows[n:]
	}
	return out
}
