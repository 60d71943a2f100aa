package bom

import (
	"errors"
	"os"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/epfab/asmtrack/pkg/model"
	"github.com/epfab/asmtrack/pkg/sanitize"
)

// Config is the engine policy, supplied by the tracker manifest.
type Config struct {
	JobsRoot   string
	QuotesRoot string

	BOMGlob       string
	ReceivingGlob string
	OverageGlob   string

	// DesignatorCap bounds the designator summary before it collapses to
	// the overflow token.
	DesignatorCap int

	// DateLayouts validate sentinel completion dates.
	DateLayouts []string
}

// Stats summarizes one readiness build.
type Stats struct {
	Jobs            int `json:"jobs"`
	JobsWithBOM     int `json:"jobs_with_bom"`
	JobsWithoutBOM  int `json:"jobs_without_bom"`
	AmbiguousDirs   int `json:"ambiguous_dirs"`
	LinesParsed     int `json:"lines_parsed"`
	LinesSkipped    int `json:"lines_skipped"`
	OveragesApplied int `json:"overages_applied"`
}

// Engine derives per-work-order readiness views.
type Engine struct {
	cfg Config
	log *zap.Logger
}

// New returns an Engine.
func New(cfg Config, log *zap.Logger) *Engine {
	if cfg.DesignatorCap == 0 {
		cfg.DesignatorCap = 10
	}
	if len(cfg.DateLayouts) == 0 {
		cfg.DateLayouts = []string{"1/2/2006", "01/02/2006", "2006-01-02"}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{cfg: cfg, log: log}
}

// Build locates and parses each active job's BOM and receiving exports,
// merges purchasing overages, and derives the readiness views.
//
// Every active job yields a view even when no BOM was found; such jobs
// report no shortages and fabrication status None. Location ambiguity and
// malformed files degrade that job's view, never the run.
func (e *Engine) Build(jobs []model.JobRecord) ([]model.ReadinessView, []model.BOMLine, Stats, error) {
	var stats Stats
	var merged []model.BOMLine
	stats.Jobs = len(jobs)

	for _, j := range jobs {
		lines, ok := e.loadJobBOM(j, &stats)
		if !ok {
			continue
		}
		merged = append(merged, lines...)
	}

	// Overage overwrite, one lookup per distinct quote in the merged table.
	if e.cfg.QuotesRoot != "" {
		byQuote := e.loadOverages(merged)
		stats.OveragesApplied = ApplyOverages(merged, byQuote)
	}

	views := e.deriveViews(jobs, merged)
	return views, merged, stats, nil
}

func (e *Engine) loadJobBOM(j model.JobRecord, stats *Stats) ([]model.BOMLine, bool) {
	dir, err := FindDir(e.cfg.JobsRoot, j.WorkOrder)
	if err != nil {
		if errors.Is(err, ErrAmbiguousJobDir) {
			stats.AmbiguousDirs++
			e.log.Warn("Ambiguous job directory match; skipping BOM",
				zap.String("wo", j.WorkOrder),
				zap.Error(err))
		} else {
			stats.JobsWithoutBOM++
		}
		return nil, false
	}

	bomPath, err := FindFile(dir, e.cfg.BOMGlob)
	if err != nil {
		stats.JobsWithoutBOM++
		return nil, false
	}

	lines, skipped, err := ParseBOMFile(bomPath, j.WorkOrder, j.Quote)
	if err != nil {
		e.log.Warn("Skipping unreadable BOM export",
			zap.String("path", bomPath),
			zap.Error(err))
		stats.JobsWithoutBOM++
		return nil, false
	}
	stats.JobsWithBOM++
	stats.LinesParsed += len(lines)
	stats.LinesSkipped += skipped
	return lines, true
}

func (e *Engine) loadOverages(merged []model.BOMLine) map[string]Overage {
	quotes := make(map[string]bool)
	for _, l := range merged {
		if l.Quote != "" {
			quotes[l.Quote] = true
		}
	}

	byQuote := make(map[string]Overage)
	for quote := range quotes {
		dir, err := FindDir(e.cfg.QuotesRoot, quote)
		if err != nil {
			continue
		}
		path, err := FindFile(dir, e.cfg.OverageGlob)
		if err != nil {
			continue
		}
		ov, err := ParseOverageFile(path)
		if err != nil {
			e.log.Warn("Skipping unreadable overage table",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		byQuote[quote] = ov
	}
	return byQuote
}

// deriveViews computes the four readiness verdicts plus PO numbers per work
// order.
func (e *Engine) deriveViews(jobs []model.JobRecord, merged []model.BOMLine) []model.ReadinessView {
	type acc struct {
		view     model.ReadinessView
		purchase designatorSet
		customer designatorSet
	}

	accs := make(map[string]*acc, len(jobs))
	order := make([]string, 0, len(jobs))
	for _, j := range jobs {
		if _, ok := accs[j.WorkOrder]; ok {
			continue
		}
		accs[j.WorkOrder] = &acc{
			view: model.ReadinessView{
				WorkOrder:     j.WorkOrder,
				PCBStatus:     model.FabNone,
				StencilStatus: model.FabNone,
			},
			purchase: designatorSet{},
			customer: designatorSet{},
		}
		order = append(order, j.WorkOrder)
	}

	for _, l := range merged {
		a, ok := accs[l.WorkOrder]
		if !ok {
			continue
		}

		if l.IsSentinel() {
			// Multiple sentinel lines overwrite; last parsed wins.
			status := model.FabNone
			if e.completionValid(l.CompletionDate) {
				status = model.FabComplete
			}
			if l.PartNumber == model.PartNumberPCB {
				a.view.PCBStatus = status
			} else {
				a.view.StencilStatus = status
			}
			continue
		}

		if l.ReceivedQty >= l.RequiredQty {
			continue
		}
		if l.CustomerSupplied {
			a.view.MissingCustomerParts = true
			a.customer.add(FirstDesignator(l.Designators))
		} else {
			a.view.MissingPurchaseParts = true
			a.purchase.add(FirstDesignator(l.Designators))
		}
	}

	// PO numbers come from the receiving export in the same job directory.
	for wo, a := range accs {
		a.view.PONumbers = e.loadPONumbers(wo)
		a.view.PurchaseDesignators = a.purchase.summary(e.cfg.DesignatorCap)
		a.view.CustomerDesignators = a.customer.summary(e.cfg.DesignatorCap)
	}

	sort.Strings(order)
	views := make([]model.ReadinessView, 0, len(order))
	for _, wo := range order {
		views = append(views, accs[wo].view)
	}
	return views
}

func (e *Engine) loadPONumbers(workOrder string) []int {
	dir, err := FindDir(e.cfg.JobsRoot, workOrder)
	if err != nil {
		return nil
	}
	path, err := FindFile(dir, e.cfg.ReceivingGlob)
	if err != nil {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	pos, err := ParseReceiving(f)
	if err != nil {
		return nil
	}
	sort.Ints(pos)
	return pos
}

// completionValid reports whether a sentinel completion date counts as done:
// non-empty, not a null sentinel, carries at least one digit, and parses as
// a date.
func (e *Engine) completionValid(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	switch strings.ToLower(s) {
	case "none", "nan", "nat", "null":
		return false
	}
	hasDigit := false
	for _, r := range s {
		if unicode.IsDigit(r) {
			hasDigit = true
			break
		}
	}
	if !hasDigit {
		return false
	}
	_, ok := sanitize.ParseDate(s, e.cfg.DateLayouts)
	return ok
}
