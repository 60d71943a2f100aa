package sheetsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epfab/asmtrack/pkg/model"
	"github.com/epfab/asmtrack/pkg/sheet"
)

// fakeClient is an in-memory sheet service.
type fakeClient struct {
	sheet  sheet.Sheet
	nextID int64

	deleteCalls [][]int64
	insertCalls [][]sheet.Row

	failDeleteAfter int // fail the Nth delete call (1-based); 0 disables
	failInsertAfter int

	onDelete func() // observed at the top of every DeleteRows call
}

var errFake = errors.New("service down")

func newFakeClient(columns []sheet.Column) *fakeClient {
	return &fakeClient{
		sheet:  sheet.Sheet{ID: "sheet-1", Columns: columns},
		nextID: 100,
	}
}

func (f *fakeClient) GetSheet(_ context.Context, _ string) (*sheet.Sheet, error) {
	cp := f.sheet
	cp.Rows = append([]sheet.Row(nil), f.sheet.Rows...)
	return &cp, nil
}

func (f *fakeClient) DeleteRows(_ context.Context, _ string, rowIDs []int64) error {
	if f.onDelete != nil {
		f.onDelete()
	}
	f.deleteCalls = append(f.deleteCalls, rowIDs)
	if f.failDeleteAfter > 0 && len(f.deleteCalls) >= f.failDeleteAfter {
		return errFake
	}
	drop := make(map[int64]bool, len(rowIDs))
	for _, id := range rowIDs {
		drop[id] = true
	}
	var kept []sheet.Row
	for _, r := range f.sheet.Rows {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	f.sheet.Rows = kept
	return nil
}

func (f *fakeClient) InsertRows(_ context.Context, _ string, rows []sheet.Row) ([]int64, error) {
	f.insertCalls = append(f.insertCalls, rows)
	if f.failInsertAfter > 0 && len(f.insertCalls) >= f.failInsertAfter {
		return nil, errFake
	}
	ids := make([]int64, len(rows))
	for i, r := range rows {
		f.nextID++
		r.ID = f.nextID
		f.sheet.Rows = append(f.sheet.Rows, r)
		ids[i] = r.ID
	}
	return ids, nil
}

var testColumns = []sheet.Column{
	{ID: 1, Title: "WO#", Index: 1},
	{ID: 2, Title: "Customer", Index: 2},
	{ID: 3, Title: "Due Date", Index: 3},
	{ID: 4, Title: "Turn", Index: 4},
	{ID: 5, Title: "Pur Part", Index: 5},
	{ID: 6, Title: "Cus Part", Index: 6},
	{ID: 7, Title: "Ref Des", Index: 7},
	{ID: 8, Title: "PCB", Index: 8},
	{ID: 9, Title: "Action Notes", Index: 9},
	{ID: 10, Title: "Stencil", Index: 10},
}

func testBuilder() *Builder {
	b := NewBuilder(Config{
		WOColumn: "WO#",
		ColumnMapping: map[string]string{
			"WO#":            "WO#",
			"Customer":       "Customer",
			"Ship Date":      "Due Date",
			"Turn Time":      "Turn",
			"Purchase Parts": "Pur Part",
			"Customer Parts": "Cus Part",
			"Ref Des":        "Ref Des",
			"PCB Status":     "PCB",
			"Stencil Status": "Stencil",
		},
		UserEnteredColumns: []string{"Action Notes"},
		DueSoonDays:        7,
		TurnTimeMax:        5,
		DateLayouts:        []string{"2006-01-02"},
	})
	b.now = func() time.Time { return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) }
	return b
}

func cellValue(t *testing.T, r sheet.Row, colID int64) string {
	t.Helper()
	c, ok := r.Cell(colID)
	require.True(t, ok, "column %d", colID)
	return c.Value
}

func cellFormat(t *testing.T, r sheet.Row, colID int64) sheet.CellFormat {
	t.Helper()
	c, ok := r.Cell(colID)
	require.True(t, ok, "column %d", colID)
	return sheet.ParseFormat(c.Format)
}

func TestCaptureUserEntered(t *testing.T) {
	s := &sheet.Sheet{
		Columns: testColumns,
		Rows: []sheet.Row{
			{ID: 101, Cells: []sheet.Cell{{ColumnID: 1, Value: "22222-1"}, {ColumnID: 9, Value: "call vendor"}}},
			{ID: 102, Cells: []sheet.Cell{{ColumnID: 1, Value: "11111-1"}, {ColumnID: 9, Value: "  "}}},
			{ID: 103, Cells: []sheet.Cell{{ColumnID: 9, Value: "orphan note"}}},
			{ID: 104, Cells: []sheet.Cell{{ColumnID: 1, Value: "33333-1"}, {ColumnID: 9, Value: "expedite"}}},
		},
	}

	rows := CaptureUserEntered(s, "WO#", []string{"Action Notes"})
	require.Len(t, rows, 2)
	assert.Equal(t, "22222-1", rows[0].WorkOrder)
	assert.Equal(t, map[string]string{"Action Notes": "call vendor"}, rows[0].Values)
	assert.Equal(t, "33333-1", rows[1].WorkOrder)
}

func TestBuildRowsOrdering(t *testing.T) {
	inputs := []RowInput{
		{Job: model.JobRecord{WorkOrder: "44444-1"}}, // no date, no shortage: last
		{Job: model.JobRecord{WorkOrder: "22222-1", ShipDate: "2026-07-01"}},
		{Job: model.JobRecord{WorkOrder: "11111-1", ShipDate: "2026-06-20"}},
		// Purchase shortage sorts first despite the latest date.
		{Job: model.JobRecord{WorkOrder: "33333-1", ShipDate: "2026-08-01"},
			View: model.ReadinessView{MissingPurchaseParts: true}},
	}

	rows := testBuilder().BuildRows(&sheet.Sheet{Columns: testColumns}, inputs, nil)
	require.Len(t, rows, 4)
	var got []string
	for _, r := range rows {
		got = append(got, cellValue(t, r, 1))
	}
	assert.Equal(t, []string{"33333-1", "11111-1", "22222-1", "44444-1"}, got)
}

func TestBuildRowFormats(t *testing.T) {
	inputs := []RowInput{{
		Job: model.JobRecord{
			WorkOrder:  "12345-1",
			CreditHold: true,
			ShipDate:   "2026-06-10", // overdue against the fixed clock
			TurnTime:   3,
		},
		View: model.ReadinessView{
			MissingPurchaseParts: true,
			PurchaseDesignators:  "C1,R3",
			PCBStatus:            model.FabComplete,
			StencilStatus:        model.FabNone,
		},
	}}

	rows := testBuilder().BuildRows(&sheet.Sheet{Columns: testColumns}, inputs, nil)
	require.Len(t, rows, 1)
	r := rows[0]

	assert.Equal(t, colorRed, cellFormat(t, r, 1).Background, "credit hold")
	assert.Equal(t, colorRed, cellFormat(t, r, 3).Background, "overdue")
	assert.Equal(t, colorYellow, cellFormat(t, r, 4).Background, "short turn")
	assert.Equal(t, colorRed, cellFormat(t, r, 5).Background, "purchase shortage")
	assert.Equal(t, colorGreen, cellFormat(t, r, 6).Background, "customer resolved")
	assert.Equal(t, colorGreen, cellFormat(t, r, 8).Background, "pcb complete")
	assert.Equal(t, colorRed, cellFormat(t, r, 10).Background, "stencil outstanding")

	assert.Equal(t, "Yes", cellValue(t, r, 5))
	assert.Equal(t, "No", cellValue(t, r, 6))
	assert.Equal(t, "C1,R3", cellValue(t, r, 7))
	assert.Equal(t, "Complete", cellValue(t, r, 8))
	assert.Equal(t, "None", cellValue(t, r, 10))
	assert.Equal(t, "3", cellValue(t, r, 4))
}

func TestBuildRowFabUnknownUnstyled(t *testing.T) {
	// A job with no merged BOM carries empty milestone verdicts.
	inputs := []RowInput{{Job: model.JobRecord{WorkOrder: "12345-1"}}}
	rows := testBuilder().BuildRows(&sheet.Sheet{Columns: testColumns}, inputs, nil)
	require.Len(t, rows, 1)
	assert.True(t, cellFormat(t, rows[0], 8).IsZero())
	assert.True(t, cellFormat(t, rows[0], 10).IsZero())
}

func TestBuildRowDueSoon(t *testing.T) {
	inputs := []RowInput{{Job: model.JobRecord{WorkOrder: "12345-1", ShipDate: "2026-06-20"}}}
	rows := testBuilder().BuildRows(&sheet.Sheet{Columns: testColumns}, inputs, nil)
	assert.Equal(t, colorYellow, cellFormat(t, rows[0], 3).Background)
}

func TestBuildRowDueBandsUseCalendarDate(t *testing.T) {
	b := testBuilder()
	// 20:00 on June 15 in UTC-10 is already June 16 in UTC. The bands must
	// follow the clock's calendar date, so a same-day ship date is due soon,
	// not overdue.
	loc := time.FixedZone("UTC-10", -10*3600)
	b.now = func() time.Time { return time.Date(2026, 6, 15, 20, 0, 0, 0, loc) }

	inputs := []RowInput{{Job: model.JobRecord{WorkOrder: "12345-1", ShipDate: "2026-06-15"}}}
	rows := b.BuildRows(&sheet.Sheet{Columns: testColumns}, inputs, nil)
	assert.Equal(t, colorYellow, cellFormat(t, rows[0], 3).Background)
}

func TestReplaceBatching(t *testing.T) {
	fc := newFakeClient(testColumns)
	for i := int64(0); i < 5; i++ {
		fc.sheet.Rows = append(fc.sheet.Rows, sheet.Row{ID: 10 + i})
	}

	syncer := NewSyncer(fc, testBuilder(), SyncConfig{
		SheetID:         "sheet-1",
		DeleteBatchSize: 2,
		InsertBatchSize: 2,
	}, nil)

	inputs := []RowInput{
		{Job: model.JobRecord{WorkOrder: "11111-1"}},
		{Job: model.JobRecord{WorkOrder: "22222-1"}},
		{Job: model.JobRecord{WorkOrder: "33333-1"}},
	}
	res, err := syncer.Replace(context.Background(), inputs)
	require.NoError(t, err)

	assert.Equal(t, 5, res.RowsDeleted)
	assert.Equal(t, 3, res.RowsInserted)
	assert.Len(t, fc.deleteCalls, 3) // 2+2+1
	assert.Len(t, fc.insertCalls, 2) // 2+1
	assert.Len(t, fc.sheet.Rows, 3)
}

func TestReplaceAbortsOnDeleteFailure(t *testing.T) {
	fc := newFakeClient(testColumns)
	fc.sheet.Rows = []sheet.Row{
		{ID: 10, Cells: []sheet.Cell{{ColumnID: 1, Value: "11111-1"}, {ColumnID: 9, Value: "note"}}},
		{ID: 11}, {ID: 12},
	}
	fc.failDeleteAfter = 2

	syncer := NewSyncer(fc, testBuilder(), SyncConfig{
		SheetID:         "sheet-1",
		DeleteBatchSize: 1,
		InsertBatchSize: 10,
	}, nil)

	res, err := syncer.Replace(context.Background(), nil)
	require.ErrorIs(t, err, errFake)
	assert.Equal(t, 1, res.RowsDeleted)
	assert.Zero(t, res.RowsInserted)
	assert.Empty(t, fc.insertCalls)
	// The snapshot was captured before the failure and is still returned.
	require.Len(t, res.Snapshot, 1)
	assert.Equal(t, "11111-1", res.Snapshot[0].WorkOrder)
}

// A human-typed note must survive a full destructive replace.
func TestReplacePreservesUserEntered(t *testing.T) {
	fc := newFakeClient(testColumns)
	syncer := NewSyncer(fc, testBuilder(), SyncConfig{SheetID: "sheet-1"}, nil)

	inputs := []RowInput{{Job: model.JobRecord{WorkOrder: "12345-1", Customer: "Acme"}}}
	_, err := syncer.Replace(context.Background(), inputs)
	require.NoError(t, err)

	// A human types a note into the live sheet.
	require.Len(t, fc.sheet.Rows, 1)
	fc.sheet.Rows[0].Cells = append(fc.sheet.Rows[0].Cells,
		sheet.Cell{ColumnID: 9, Value: "waiting on customer"})

	res, err := syncer.Replace(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, res.Snapshot, 1)

	require.Len(t, fc.sheet.Rows, 1)
	assert.Equal(t, "waiting on customer", fc.sheet.Rows[0].Value(9))
	assert.Equal(t, "Acme", fc.sheet.Rows[0].Value(2))
}

// The snapshot must be handed to the persist hook before the first delete
// batch goes out; rows deleted earlier would take the notes with them.
func TestReplacePersistsSnapshotBeforeDelete(t *testing.T) {
	fc := newFakeClient(testColumns)
	fc.sheet.Rows = []sheet.Row{
		{ID: 10, Cells: []sheet.Cell{{ColumnID: 1, Value: "11111-1"}, {ColumnID: 9, Value: "note"}}},
		{ID: 11},
	}

	var persisted []model.UserEnteredRow
	syncer := NewSyncer(fc, testBuilder(), SyncConfig{SheetID: "sheet-1", DeleteBatchSize: 1}, nil)
	syncer.PersistSnapshot = func(rows []model.UserEnteredRow) error {
		persisted = append([]model.UserEnteredRow(nil), rows...)
		return nil
	}
	fc.onDelete = func() {
		require.Len(t, persisted, 1, "snapshot not persisted before deletion")
		assert.Equal(t, "11111-1", persisted[0].WorkOrder)
	}

	_, err := syncer.Replace(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, fc.deleteCalls, 2)
}

func TestReplaceAbortsWhenPersistFails(t *testing.T) {
	fc := newFakeClient(testColumns)
	fc.sheet.Rows = []sheet.Row{{ID: 10}}

	syncer := NewSyncer(fc, testBuilder(), SyncConfig{SheetID: "sheet-1"}, nil)
	syncer.PersistSnapshot = func([]model.UserEnteredRow) error { return errFake }

	res, err := syncer.Replace(context.Background(), nil)
	require.ErrorIs(t, err, errFake)
	assert.Zero(t, res.RowsDeleted)
	assert.Empty(t, fc.deleteCalls, "no row may be deleted without a durable snapshot")
}
