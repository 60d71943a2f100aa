package model

// Correction kinds recorded by the sanitizer.
const (
	CorrectionNumeric   = "numeric"
	CorrectionDate      = "date"
	CorrectionWorkOrder = "work_order"
)

// Correction is one substitution made by the sanitizer. Corrections are
// ordered and persisted so type degradation is auditable between cycles.
type Correction struct {
	WorkOrder string `json:"wo"`
	Field     string `json:"field"`
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
	Kind      string `json:"kind"`
}

// HoldDiscrepancy is the set difference between the two credit-hold signals,
// written out for manual review. It never blocks the pipeline.
type HoldDiscrepancy struct {
	// DatabaseOnly lists work orders the relational source marks held but
	// the job export does not, and FileOnly the reverse.
	DatabaseOnly []string `json:"database_only"`
	FileOnly     []string `json:"file_only"`

	// OrderNumbers maps each discrepant work order to the derived order
	// number used for the relational join, for tracing bad joins.
	OrderNumbers map[string]string `json:"order_numbers,omitempty"`
}
