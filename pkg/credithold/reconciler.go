// Package credithold merges the two independently-maintained credit-hold
// signals, the job export's hold flag and the order-management database's
// hold column, into one authoritative view, and detects jobs newly released
// from hold between cycles.
//
// The union policy is deliberate: a job is treated as held if either source
// says so, because missing a real hold is operationally worse than flagging
// a false one. Disagreements between the sources are written out as a
// discrepancy artifact for manual review rather than resolved silently.
package credithold

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/epfab/asmtrack/pkg/model"
)

// OrderSource is the read-only boundary to the order-management database.
// Implementations answer one batched lookup per cycle; per-row queries are
// never issued.
type OrderSource interface {
	// HoldFlags returns the credit-hold flag for each order number it
	// recognizes. Unknown order numbers are simply absent from the result.
	HoldFlags(ctx context.Context, orderNos []string) (map[string]bool, error)
}

// Config is the reconciler policy, supplied by the tracker manifest.
type Config struct {
	// ExcludedStatuses are terminal statuses removed before classification.
	ExcludedStatuses []string

	// OrderNoWidth is the zero-padded width of the derived join key.
	OrderNoWidth int
}

// Result is the disjoint classification produced by one reconciliation.
type Result struct {
	// Active jobs are neither terminal nor held.
	Active []model.JobRecord

	// Held carries one record per work order in the authoritative hold set,
	// preserving the first-observed tracking date across cycles.
	Held []model.CreditHoldRecord

	// Released lists work orders present in the prior cycle's hold set and
	// absent from the authoritative set this cycle.
	Released []model.CreditHoldRecord

	// Discrepancy is the side-channel disagreement report between the two
	// hold signals. It never blocks the pipeline.
	Discrepancy model.HoldDiscrepancy

	// DBUnavailable is set when the batch query failed and the cycle ran on
	// file-derived signals only.
	DBUnavailable bool
}

// Reconciler classifies jobs into active, held, and released.
type Reconciler struct {
	cfg Config
	src OrderSource
	log *zap.Logger

	now func() time.Time
}

// New returns a Reconciler. src may be nil when no relational source is
// configured; the reconciler then runs on file signals alone.
func New(cfg Config, src OrderSource, log *zap.Logger) *Reconciler {
	if cfg.OrderNoWidth == 0 {
		cfg.OrderNoWidth = 7
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{cfg: cfg, src: src, log: log, now: time.Now}
}

const trackingDateLayout = "2006-01-02 15:04:05"

// Reconcile merges the hold signals for jobs against the prior cycle's hold
// records and returns the classification.
//
// An entirely failed batch query degrades to file-only signals and a warning;
// an unreachable database must not halt the run.
func (r *Reconciler) Reconcile(ctx context.Context, jobs []model.JobRecord, prior []model.CreditHoldRecord) Result {
	var res Result
	now := r.now()
	nowStamp := now.Format(trackingDateLayout)

	orderNos := make(map[string]string, len(jobs)) // wo -> derived order no
	var queryKeys []string
	seen := make(map[string]bool)
	for _, j := range jobs {
		no := DeriveOrderNo(j.WorkOrder, r.cfg.OrderNoWidth)
		orderNos[j.WorkOrder] = no
		if no != "" && !seen[no] {
			seen[no] = true
			queryKeys = append(queryKeys, no)
		}
	}
	sort.Strings(queryKeys)

	dbFlags := map[string]bool{}
	if r.src != nil && len(queryKeys) > 0 {
		flags, err := r.src.HoldFlags(ctx, queryKeys)
		if err != nil {
			r.log.Warn("Credit-hold batch query failed; continuing on file signals only",
				zap.Int("order_count", len(queryKeys)),
				zap.Error(err))
			res.DBUnavailable = true
		} else {
			dbFlags = flags
		}
	}

	excluded := make(map[string]bool, len(r.cfg.ExcludedStatuses))
	for _, s := range r.cfg.ExcludedStatuses {
		excluded[s] = true
	}

	priorByWO := make(map[string]model.CreditHoldRecord, len(prior))
	for _, rec := range prior {
		priorByWO[rec.WorkOrder] = rec
	}

	authoritative := make(map[string]bool)
	for _, j := range jobs {
		if excluded[j.Status] {
			continue
		}

		fileHold := j.CreditHold
		dbHold := dbFlags[orderNos[j.WorkOrder]]

		switch {
		case fileHold && dbHold:
			// agreement, nothing to report
		case dbHold && !fileHold:
			res.Discrepancy.DatabaseOnly = append(res.Discrepancy.DatabaseOnly, j.WorkOrder)
			r.noteDiscrepantOrderNo(&res, j.WorkOrder, orderNos[j.WorkOrder])
		case fileHold && !dbHold && !res.DBUnavailable && r.src != nil:
			res.Discrepancy.FileOnly = append(res.Discrepancy.FileOnly, j.WorkOrder)
			r.noteDiscrepantOrderNo(&res, j.WorkOrder, orderNos[j.WorkOrder])
		}

		if !fileHold && !dbHold {
			res.Active = append(res.Active, j)
			continue
		}

		authoritative[j.WorkOrder] = true
		rec := model.CreditHoldRecord{
			WorkOrder:    j.WorkOrder,
			TrackingDate: nowStamp,
			Source:       holdSource(fileHold, dbHold),
		}
		if old, ok := priorByWO[j.WorkOrder]; ok && old.TrackingDate != "" {
			rec.TrackingDate = old.TrackingDate
		}
		res.Held = append(res.Held, rec)
	}

	// Transition detection: previously held, no longer in the authoritative
	// set this cycle.
	releaseDate := now.Format("2006-01-02")
	for _, old := range prior {
		if authoritative[old.WorkOrder] {
			continue
		}
		rel := old
		rel.ReleaseDate = releaseDate
		res.Released = append(res.Released, rel)
	}

	sort.Strings(res.Discrepancy.DatabaseOnly)
	sort.Strings(res.Discrepancy.FileOnly)
	sort.Slice(res.Held, func(i, j int) bool { return res.Held[i].WorkOrder < res.Held[j].WorkOrder })
	sort.Slice(res.Released, func(i, j int) bool { return res.Released[i].WorkOrder < res.Released[j].WorkOrder })

	return res
}

func (r *Reconciler) noteDiscrepantOrderNo(res *Result, wo, orderNo string) {
	if orderNo == "" {
		return
	}
	if res.Discrepancy.OrderNumbers == nil {
		res.Discrepancy.OrderNumbers = make(map[string]string)
	}
	res.Discrepancy.OrderNumbers[wo] = orderNo
}

func holdSource(fileHold, dbHold bool) string {
	switch {
	case fileHold && dbHold:
		return "both"
	case dbHold:
		return "db"
	default:
		return "file"
	}
}
