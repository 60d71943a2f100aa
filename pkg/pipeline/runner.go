// Package pipeline orchestrates one full tracking cycle: ingest the job
// exports, sanitize them, reconcile credit holds, derive BOM readiness, and
// replace the tracking sheet. Every stage persists its artifact before the
// next stage runs, so a failed cycle leaves inspectable state behind.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/epfab/asmtrack/pkg/auditstore"
	"github.com/epfab/asmtrack/pkg/bom"
	"github.com/epfab/asmtrack/pkg/credithold"
	"github.com/epfab/asmtrack/pkg/exportcache"
	"github.com/epfab/asmtrack/pkg/manifest"
	"github.com/epfab/asmtrack/pkg/model"
	"github.com/epfab/asmtrack/pkg/sanitize"
	"github.com/epfab/asmtrack/pkg/sheet"
	"github.com/epfab/asmtrack/pkg/sheetsync"
	"github.com/epfab/asmtrack/pkg/statefile"
)

// Artifact file names, relative to the state directory.
const (
	FileJobCache        = "job_cache.json"
	FileActiveJobs      = "active_jobs.json"
	FileCreditHold      = "credit_hold.json"
	FileCreditReleased  = "credit_hold_released.json"
	FileMissingPurchase = "missing_purchase_parts.json"
	FileMissingCustomer = "missing_customer_parts.json"
	FileFabStatus       = "fab_status.json"
	FilePONumbers       = "po_numbers.json"
	FileUserEntered     = "user_entered.json"
	FileCorrections     = "corrections.json"
	FileDiscrepancy     = "hold_discrepancy.json"
	FileRunStats        = "run_stats.json"
)

// Options assembles a Runner. OrderSource, SheetClient, and Audit are all
// optional; a nil value skips that integration for the cycle.
type Options struct {
	Manifest *manifest.Manifest

	// StateDir holds the JSON artifacts between cycles.
	StateDir string

	OrderSource credithold.OrderSource

	SheetClient sheet.Client
	SheetID     string

	Audit *auditstore.Store

	Log *zap.Logger
}

// Stats is the run summary, persisted as run_stats.json and to the audit
// store.
type Stats struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	Cache exportcache.Stats `json:"cache"`

	Corrections int `json:"corrections"`

	ActiveJobs    int  `json:"active_jobs"`
	HeldJobs      int  `json:"held_jobs"`
	ReleasedJobs  int  `json:"released_jobs"`
	DBUnavailable bool `json:"db_unavailable,omitempty"`

	BOM bom.Stats `json:"bom"`

	SheetRowsDeleted  int `json:"sheet_rows_deleted,omitempty"`
	SheetRowsInserted int `json:"sheet_rows_inserted,omitempty"`
}

// FabStatus is one work order's fabrication verdict in fab_status.json.
type FabStatus struct {
	PCB     string `json:"pcb"`
	Stencil string `json:"stencil"`
}

// Runner executes tracking cycles.
type Runner struct {
	opts Options
	log  *zap.Logger

	now func() time.Time
}

// NewRunner returns a Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Manifest == nil {
		return nil, fmt.Errorf("pipeline: manifest is required")
	}
	if opts.StateDir == "" {
		return nil, fmt.Errorf("pipeline: state dir is required")
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{opts: opts, log: log, now: time.Now}, nil
}

func (r *Runner) statePath(name string) string {
	return filepath.Join(r.opts.StateDir, name)
}

// Run executes one full cycle. Degraded integrations (unreachable order
// database) downgrade the run; a failed stage aborts it with the artifacts
// written so far intact.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	m := r.opts.Manifest
	stats := Stats{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
	}
	log := r.log.With(zap.String("run_id", stats.RunID))
	log.Info("Starting tracking cycle", zap.String("jobs_root", m.Sources.JobsRoot))

	if r.opts.Audit != nil {
		if err := r.opts.Audit.BeginRun(ctx, stats.RunID, stats.StartedAt); err != nil {
			return stats, fmt.Errorf("audit: %w", err)
		}
	}

	err := r.run(ctx, log, &stats)
	stats.EndedAt = r.now()

	if werr := statefile.Save(r.statePath(FileRunStats), stats); werr != nil && err == nil {
		err = werr
	}
	if r.opts.Audit != nil {
		status := auditstore.RunStatusSuccess
		switch {
		case err != nil:
			status = auditstore.RunStatusFailed
		case stats.DBUnavailable:
			status = auditstore.RunStatusPartial
		}
		if aerr := r.opts.Audit.FinishRun(ctx, stats.RunID, status, stats.EndedAt, stats); aerr != nil {
			log.Warn("Failed to finalize audit run", zap.Error(aerr))
		}
	}

	if err != nil {
		return stats, err
	}
	log.Info("Tracking cycle complete",
		zap.Int("active_jobs", stats.ActiveJobs),
		zap.Int("held_jobs", stats.HeldJobs),
		zap.Duration("elapsed", stats.EndedAt.Sub(stats.StartedAt)))
	return stats, nil
}

func (r *Runner) run(ctx context.Context, log *zap.Logger, stats *Stats) error {
	m := r.opts.Manifest

	// Stage 1: incremental ingestion.
	start := r.now()
	prior, err := exportcache.Load(r.statePath(FileJobCache))
	if err != nil {
		return fmt.Errorf("load job cache: %w", err)
	}
	builder := &exportcache.Builder{ExportName: m.Sources.ExportFile, Log: log}
	cache, cacheStats, err := builder.Build(m.Sources.JobsRoot, prior)
	if err != nil {
		return fmt.Errorf("build job cache: %w", err)
	}
	stats.Cache = cacheStats
	log.Info("Ingested job exports",
		zap.Int("directories", cacheStats.Directories),
		zap.Int("parsed", cacheStats.Parsed),
		zap.Int("reused", cacheStats.Reused),
		zap.Int("skipped", cacheStats.Skipped),
		zap.Duration("elapsed", r.now().Sub(start)))

	// Stage 2: sanitation. Corrections are recorded before the corrected
	// cache is persisted.
	sanitizer := newSanitizer(m)
	corrections := sanitizer.Apply(cache.Entries)
	stats.Corrections = len(corrections)
	if err := statefile.Save(r.statePath(FileCorrections), corrections); err != nil {
		return fmt.Errorf("save corrections: %w", err)
	}
	if r.opts.Audit != nil {
		if err := r.opts.Audit.RecordCorrections(ctx, stats.RunID, corrections); err != nil {
			return fmt.Errorf("audit corrections: %w", err)
		}
	}
	if err := exportcache.Save(r.statePath(FileJobCache), cache); err != nil {
		return fmt.Errorf("save job cache: %w", err)
	}
	if len(corrections) > 0 {
		log.Info("Sanitized job records", zap.Int("corrections", len(corrections)))
	}

	jobs := make([]model.JobRecord, 0, len(cache.Entries))
	for _, e := range cache.Entries {
		jobs = append(jobs, e.JobRecord())
	}

	// Stage 3: credit-hold reconciliation.
	start = r.now()
	var priorHeld []model.CreditHoldRecord
	if _, err := statefile.Load(r.statePath(FileCreditHold), &priorHeld); err != nil {
		return fmt.Errorf("load credit holds: %w", err)
	}
	reconciler := credithold.New(credithold.Config{
		ExcludedStatuses: m.Policy.ExcludedStatuses,
		OrderNoWidth:     m.Policy.OrderNoWidth,
	}, r.opts.OrderSource, log)
	holds := reconciler.Reconcile(ctx, jobs, priorHeld)

	stats.ActiveJobs = len(holds.Active)
	stats.HeldJobs = len(holds.Held)
	stats.ReleasedJobs = len(holds.Released)
	stats.DBUnavailable = holds.DBUnavailable

	if err := statefile.Save(r.statePath(FileActiveJobs), holds.Active); err != nil {
		return fmt.Errorf("save active jobs: %w", err)
	}
	if err := statefile.Save(r.statePath(FileCreditHold), holds.Held); err != nil {
		return fmt.Errorf("save credit holds: %w", err)
	}
	if err := r.appendReleased(holds.Released); err != nil {
		return err
	}
	if err := statefile.Save(r.statePath(FileDiscrepancy), holds.Discrepancy); err != nil {
		return fmt.Errorf("save hold discrepancy: %w", err)
	}
	if r.opts.Audit != nil {
		if err := r.opts.Audit.RecordDiscrepancy(ctx, stats.RunID, holds.Discrepancy); err != nil {
			return fmt.Errorf("audit discrepancy: %w", err)
		}
	}
	log.Info("Reconciled credit holds",
		zap.Int("active", len(holds.Active)),
		zap.Int("held", len(holds.Held)),
		zap.Int("released", len(holds.Released)),
		zap.Bool("db_unavailable", holds.DBUnavailable),
		zap.Duration("elapsed", r.now().Sub(start)))

	// Stage 4: BOM readiness.
	start = r.now()
	engine := bom.New(bom.Config{
		JobsRoot:      m.Sources.JobsRoot,
		QuotesRoot:    m.Sources.QuotesRoot,
		BOMGlob:       m.Sources.BOMGlob,
		ReceivingGlob: m.Sources.ReceivingGlob,
		OverageGlob:   m.Sources.OverageGlob,
		DesignatorCap: m.Sheet.DesignatorCap,
		DateLayouts:   m.Policy.DateLayouts,
	}, log)
	views, _, bomStats, err := engine.Build(holds.Active)
	if err != nil {
		return fmt.Errorf("build readiness: %w", err)
	}
	stats.BOM = bomStats
	if err := r.saveReadiness(views); err != nil {
		return err
	}
	log.Info("Derived BOM readiness",
		zap.Int("jobs_with_bom", bomStats.JobsWithBOM),
		zap.Int("lines_parsed", bomStats.LinesParsed),
		zap.Int("overages_applied", bomStats.OveragesApplied),
		zap.Duration("elapsed", r.now().Sub(start)))

	// Stage 5: sheet replace.
	if r.opts.SheetClient == nil {
		return nil
	}
	start = r.now()
	viewByWO := make(map[string]model.ReadinessView, len(views))
	for _, v := range views {
		viewByWO[v.WorkOrder] = v
	}
	inputs := make([]sheetsync.RowInput, 0, len(holds.Active))
	for _, j := range holds.Active {
		inputs = append(inputs, sheetsync.RowInput{Job: j, View: viewByWO[j.WorkOrder]})
	}

	syncer := sheetsync.NewSyncer(r.opts.SheetClient, sheetsync.NewBuilder(sheetsync.Config{
		WOColumn:           m.Sheet.WOColumn,
		ColumnMapping:      m.Sheet.ColumnMapping,
		UserEnteredColumns: m.Sheet.UserEnteredColumns,
		DueSoonDays:        m.Sheet.DueSoonDays,
		TurnTimeMax:        m.Sheet.TurnTimeMax,
		DateLayouts:        m.Policy.DateLayouts,
	}), sheetsync.SyncConfig{
		SheetID:         r.opts.SheetID,
		DeleteBatchSize: m.Sheet.DeleteBatchSize,
		InsertBatchSize: m.Sheet.InsertBatchSize,
	}, log)

	// The snapshot must be on disk before the syncer deletes anything; a
	// crash mid-delete would otherwise lose the only copy of what humans
	// typed into the sheet.
	syncer.PersistSnapshot = func(snapshot []model.UserEnteredRow) error {
		return statefile.Save(r.statePath(FileUserEntered), snapshot)
	}

	res, syncErr := syncer.Replace(ctx, inputs)
	stats.SheetRowsDeleted = res.RowsDeleted
	stats.SheetRowsInserted = res.RowsInserted
	if syncErr != nil {
		return fmt.Errorf("sync sheet: %w", syncErr)
	}
	log.Info("Replaced tracking sheet",
		zap.Int("rows_deleted", res.RowsDeleted),
		zap.Int("rows_inserted", res.RowsInserted),
		zap.Duration("elapsed", r.now().Sub(start)))
	return nil
}

func newSanitizer(m *manifest.Manifest) *sanitize.Sanitizer {
	return sanitize.New(sanitize.Config{
		NumericFields:  m.Policy.NumericFields,
		NumericDefault: m.Policy.NumericDefault,
		DateFields:     m.Policy.DateFields,
		DateDefault:    m.Policy.DateDefault,
		DateLayouts:    m.Policy.DateLayouts,
	})
}

// appendReleased folds this cycle's release transitions into the persisted
// release history. A work order released again in a later cycle replaces its
// older entry.
func (r *Runner) appendReleased(released []model.CreditHoldRecord) error {
	if len(released) == 0 {
		return nil
	}
	var history []model.CreditHoldRecord
	if _, err := statefile.Load(r.statePath(FileCreditReleased), &history); err != nil {
		return fmt.Errorf("load release history: %w", err)
	}
	byWO := make(map[string]int, len(history))
	for i, rec := range history {
		byWO[rec.WorkOrder] = i
	}
	for _, rec := range released {
		if i, ok := byWO[rec.WorkOrder]; ok {
			history[i] = rec
			continue
		}
		history = append(history, rec)
	}
	if err := statefile.Save(r.statePath(FileCreditReleased), history); err != nil {
		return fmt.Errorf("save release history: %w", err)
	}
	return nil
}

// saveReadiness splits the views into the per-concern artifacts.
func (r *Runner) saveReadiness(views []model.ReadinessView) error {
	missingPurchase := make(map[string]string)
	missingCustomer := make(map[string]string)
	fab := make(map[string]FabStatus, len(views))
	pos := make(map[string][]int)
	for _, v := range views {
		if v.MissingPurchaseParts {
			missingPurchase[v.WorkOrder] = v.PurchaseDesignators
		}
		if v.MissingCustomerParts {
			missingCustomer[v.WorkOrder] = v.CustomerDesignators
		}
		fab[v.WorkOrder] = FabStatus{PCB: v.PCBStatus, Stencil: v.StencilStatus}
		if len(v.PONumbers) > 0 {
			pos[v.WorkOrder] = v.PONumbers
		}
	}

	saves := []struct {
		name string
		v    any
	}{
		{FileMissingPurchase, missingPurchase},
		{FileMissingCustomer, missingCustomer},
		{FileFabStatus, fab},
		{FilePONumbers, pos},
	}
	for _, s := range saves {
		if err := statefile.Save(r.statePath(s.name), s.v); err != nil {
			return fmt.Errorf("save %s: %w", s.name, err)
		}
	}
	return nil
}
