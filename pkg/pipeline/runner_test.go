package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epfab/asmtrack/pkg/auditstore"
	"github.com/epfab/asmtrack/pkg/manifest"
	"github.com/epfab/asmtrack/pkg/model"
	"github.com/epfab/asmtrack/pkg/sheet"
	"github.com/epfab/asmtrack/pkg/statefile"
)

// fakeOrders is an in-memory order-management source.
type fakeOrders struct {
	holds map[string]bool
	err   error
	calls int
}

func (f *fakeOrders) HoldFlags(_ context.Context, orderNos []string) (map[string]bool, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]bool)
	for _, no := range orderNos {
		if v, ok := f.holds[no]; ok {
			out[no] = v
		}
	}
	return out, nil
}

// fakeSheet is an in-memory sheet service.
type fakeSheet struct {
	sheet  sheet.Sheet
	nextID int64

	onDelete func() // observed at the top of every DeleteRows call
}

func newFakeSheet(titles ...string) *fakeSheet {
	f := &fakeSheet{nextID: 1000}
	f.sheet.ID = "sheet-1"
	for i, title := range titles {
		f.sheet.Columns = append(f.sheet.Columns, sheet.Column{
			ID:    int64(i + 1),
			Title: title,
			Index: i + 1,
		})
	}
	return f
}

func (f *fakeSheet) GetSheet(_ context.Context, _ string) (*sheet.Sheet, error) {
	cp := f.sheet
	cp.Rows = append([]sheet.Row(nil), f.sheet.Rows...)
	return &cp, nil
}

func (f *fakeSheet) DeleteRows(_ context.Context, _ string, rowIDs []int64) error {
	if f.onDelete != nil {
		f.onDelete()
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

func (f *fakeSheet) InsertRows(_ context.Context, _ string, rows []sheet.Row) ([]int64, error) {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		f.nextID++
		r.ID = f.nextID
		f.sheet.Rows = append(f.sheet.Rows, r)
		ids[i] = r.ID
	}
	return ids, nil
}

func (f *fakeSheet) rowByWO(wo string) (sheet.Row, bool) {
	woID := f.sheet.ColumnID("WO#")
	for _, r := range f.sheet.Rows {
		if r.Value(woID) == wo {
			return r, true
		}
	}
	return sheet.Row{}, false
}

func writeExport(t *testing.T, jobsRoot, dir string, kv map[string]string) {
	t.Helper()
	full := filepath.Join(jobsRoot, dir)
	require.NoError(t, os.MkdirAll(full, 0o755))
	var b strings.Builder
	for k, v := range kv {
		b.WriteString(k + "|" + v + "\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(full, "jobExport.txt"), []byte(b.String()), 0o644))
}

func writeJobFile(t *testing.T, root, dir, name, content string) {
	t.Helper()
	full := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(full, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(full, name), []byte(content), 0o644))
}

type fixture struct {
	jobsRoot string
	stateDir string
	manifest *manifest.Manifest
	orders   *fakeOrders
	sheet    *fakeSheet
	audit    *auditstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		jobsRoot: t.TempDir(),
		stateDir: t.TempDir(),
		orders:   &fakeOrders{holds: map[string]bool{}},
		sheet: newFakeSheet("WO#", "Quote #", "Customer", "Sales Order Date",
			"Due Date", "Turn", "Pur Part", "Cus Part", "Ref Des", "PCB",
			"Stencil", "PO #", "Action Notes"),
	}

	// Job on file-side credit hold.
	writeExport(t, f.jobsRoot, "11111-1 HoldCo", map[string]string{
		"WO#": "11111-1", "Quote#": "Q-100", "Customer": "HoldCo",
		"Status": "Kitting", "Credit Hold": "YES",
	})
	// Active job with a purchase shortage and garbage turn time.
	writeExport(t, f.jobsRoot, "22222-1 Acme", map[string]string{
		"WO#": "22222-1", "Quote#": "Q-200", "Customer": "Acme",
		"Status": "Kitting", "Credit Hold": "NO",
		"Ship Date": "6/20/2026", "Turn Time": "abc",
	})
	writeJobFile(t, f.jobsRoot, "22222-1 Acme", "bomExport.txt", strings.Join([]string{
		"100-1|MPN-A||Cap|C1,C2|2|DK|1|300|100|||FALSE",
		"PCB|||Board||||2|10|0|6/1/2026||FALSE",
	}, "\n"))
	writeJobFile(t, f.jobsRoot, "22222-1 Acme", "receiving.txt", "4501001|V|d\n")
	// Terminal job: excluded from everything.
	writeExport(t, f.jobsRoot, "33333-1 Done", map[string]string{
		"WO#": "33333-1", "Status": "Shipped", "Credit Hold": "NO",
	})

	f.manifest = &manifest.Manifest{
		Version: "1.0",
		Sources: manifest.SourcesConfig{JobsRoot: f.jobsRoot},
	}
	f.manifest.ApplyDefaults()

	audit, err := auditstore.Open(context.Background(), auditstore.Config{
		Path: filepath.Join(t.TempDir(), "audit.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = audit.Close() })
	f.audit = audit
	return f
}

func (f *fixture) runner(t *testing.T) *Runner {
	t.Helper()
	r, err := NewRunner(Options{
		Manifest:    f.manifest,
		StateDir:    f.stateDir,
		OrderSource: f.orders,
		SheetClient: f.sheet,
		SheetID:     "sheet-1",
		Audit:       f.audit,
	})
	require.NoError(t, err)
	return r
}

func TestRunnerFullCycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	stats, err := f.runner(t).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Cache.Directories)
	assert.Equal(t, 3, stats.Cache.Parsed)
	assert.Equal(t, 1, stats.ActiveJobs) // 11111-1 held, 33333-1 terminal
	assert.Equal(t, 1, stats.HeldJobs)
	assert.Equal(t, 1, stats.Corrections) // Turn Time "abc"
	assert.False(t, stats.DBUnavailable)
	assert.Equal(t, 1, stats.SheetRowsInserted)

	var held []model.CreditHoldRecord
	ok, err := statefile.Load(filepath.Join(f.stateDir, FileCreditHold), &held)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, held, 1)
	assert.Equal(t, "11111-1", held[0].WorkOrder)
	assert.Equal(t, "file", held[0].Source)
	assert.NotEmpty(t, held[0].TrackingDate)

	var missing map[string]string
	ok, err = statefile.Load(filepath.Join(f.stateDir, FileMissingPurchase), &missing)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"22222-1": "C1"}, missing)

	var fab map[string]FabStatus
	_, err = statefile.Load(filepath.Join(f.stateDir, FileFabStatus), &fab)
	require.NoError(t, err)
	assert.Equal(t, FabStatus{PCB: "Complete", Stencil: "None"}, fab["22222-1"])

	var pos map[string][]int
	_, err = statefile.Load(filepath.Join(f.stateDir, FilePONumbers), &pos)
	require.NoError(t, err)
	assert.Equal(t, []int{4501001}, pos["22222-1"])

	// The sheet holds exactly the active job.
	row, found := f.sheet.rowByWO("22222-1")
	require.True(t, found)
	assert.Equal(t, "Yes", row.Value(f.sheet.sheet.ColumnID("Pur Part")))
	_, foundHeld := f.sheet.rowByWO("11111-1")
	assert.False(t, foundHeld, "held jobs stay off the sheet")

	// Audit trail.
	runs, err := f.audit.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, auditstore.RunStatusSuccess, runs[0].Status)
	corr, err := f.audit.CorrectionsForRun(ctx, runs[0].RunID)
	require.NoError(t, err)
	require.Len(t, corr, 1)
	assert.Equal(t, "Turn Time", corr[0].Field)
}

func TestRunnerSecondCycleReusesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.runner(t)

	_, err := r.Run(ctx)
	require.NoError(t, err)

	stats, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Cache.Reused)
	assert.Zero(t, stats.Cache.Parsed)
}

func TestRunnerDBUnavailableDegrades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.orders.err = errors.New("connection refused")

	stats, err := f.runner(t).Run(ctx)
	require.NoError(t, err, "an unreachable order database must not fail the cycle")
	assert.True(t, stats.DBUnavailable)
	assert.Equal(t, 1, stats.HeldJobs, "file hold signal still honored")

	runs, err := f.audit.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, auditstore.RunStatusPartial, runs[0].Status)
}

func TestRunnerHoldReleaseTransition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.runner(t)

	_, err := r.Run(ctx)
	require.NoError(t, err)

	// The hold clears upstream.
	writeExport(t, f.jobsRoot, "11111-1 HoldCo", map[string]string{
		"WO#": "11111-1", "Quote#": "Q-100", "Customer": "HoldCo",
		"Status": "Kitting", "Credit Hold": "NO",
	})
	export := filepath.Join(f.jobsRoot, "11111-1 HoldCo", "jobExport.txt")
	st, err := os.Stat(export)
	require.NoError(t, err)
	bumped := st.ModTime().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(export, bumped, bumped))

	stats, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.HeldJobs)
	assert.Equal(t, 1, stats.ReleasedJobs)
	assert.Equal(t, 2, stats.ActiveJobs)

	var history []model.CreditHoldRecord
	ok, err := statefile.Load(filepath.Join(f.stateDir, FileCreditReleased), &history)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, history, 1)
	assert.Equal(t, "11111-1", history[0].WorkOrder)
	assert.NotEmpty(t, history[0].ReleaseDate)
}

// A note typed into the sheet must survive the next destructive replace.
func TestRunnerPreservesUserEntered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.runner(t)

	_, err := r.Run(ctx)
	require.NoError(t, err)

	row, found := f.sheet.rowByWO("22222-1")
	require.True(t, found)
	notesID := f.sheet.sheet.ColumnID("Action Notes")
	for i := range f.sheet.sheet.Rows {
		if f.sheet.sheet.Rows[i].ID == row.ID {
			f.sheet.sheet.Rows[i].Cells = append(f.sheet.sheet.Rows[i].Cells,
				sheet.Cell{ColumnID: notesID, Value: "chasing C1 stock"})
		}
	}

	_, err = r.Run(ctx)
	require.NoError(t, err)

	row, found = f.sheet.rowByWO("22222-1")
	require.True(t, found)
	assert.Equal(t, "chasing C1 stock", row.Value(notesID))

	var snapshot []model.UserEnteredRow
	ok, err := statefile.Load(filepath.Join(f.stateDir, FileUserEntered), &snapshot)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "22222-1", snapshot[0].WorkOrder)
}

// The on-disk snapshot must already hold the typed note when the first delete
// batch executes; a crash mid-delete would otherwise lose the only copy.
func TestRunnerSnapshotOnDiskBeforeDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.runner(t)

	_, err := r.Run(ctx)
	require.NoError(t, err)

	// A human types a note between cycles.
	row, found := f.sheet.rowByWO("22222-1")
	require.True(t, found)
	notesID := f.sheet.sheet.ColumnID("Action Notes")
	for i := range f.sheet.sheet.Rows {
		if f.sheet.sheet.Rows[i].ID == row.ID {
			f.sheet.sheet.Rows[i].Cells = append(f.sheet.sheet.Rows[i].Cells,
				sheet.Cell{ColumnID: notesID, Value: "call the fab house"})
		}
	}

	deletes := 0
	f.sheet.onDelete = func() {
		deletes++
		var snapshot []model.UserEnteredRow
		ok, err := statefile.Load(filepath.Join(f.stateDir, FileUserEntered), &snapshot)
		require.NoError(t, err)
		require.True(t, ok, "snapshot file missing at delete time")
		require.Len(t, snapshot, 1)
		assert.Equal(t, "22222-1", snapshot[0].WorkOrder)
		assert.Equal(t, "call the fab house", snapshot[0].Values["Action Notes"])
	}

	_, err = r.Run(ctx)
	require.NoError(t, err)
	assert.Positive(t, deletes)
}

func TestRunnerDiscrepancyArtifact(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// DB flags 22222-1 as held; the file does not.
	f.orders.holds["0022222"] = true

	stats, err := f.runner(t).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.HeldJobs)
	assert.Zero(t, stats.ActiveJobs)

	var d model.HoldDiscrepancy
	ok, err := statefile.Load(filepath.Join(f.stateDir, FileDiscrepancy), &d)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"22222-1"}, d.DatabaseOnly)
	assert.Equal(t, "0022222", d.OrderNumbers["22222-1"])
}
