// Package manifest provides loading and validation of tracker manifests.
//
// A tracker manifest is a YAML or JSON file carrying the pipeline policy:
// source directory roots, file patterns, terminal statuses, the numeric and
// date field declarations for the sanitizer, the sheet column mapping, and
// the sync batch sizes. Keeping these in one validated document lets several
// pipeline configurations run side by side in tests instead of living as
// package-level constants.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	sources:
//	  jobs_root: /mnt/assembly/active
//	  quotes_root: /mnt/assembly/quotes
//	sheet:
//	  user_entered_columns:
//	    - Action Notes
package manifest

// Manifest is a validated tracker manifest.
type Manifest struct {
	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Sources configures the directory trees the pipeline ingests.
	Sources SourcesConfig `json:"sources" yaml:"sources"`

	// Policy configures classification and sanitation rules (optional).
	Policy PolicyConfig `json:"policy,omitempty" yaml:"policy,omitempty"`

	// Sheet configures the tracking-sheet column layout and sync behavior
	// (optional).
	Sheet SheetConfig `json:"sheet,omitempty" yaml:"sheet,omitempty"`
}

// SourcesConfig locates the upstream export trees.
type SourcesConfig struct {
	// JobsRoot holds one subdirectory per in-progress job. Required.
	JobsRoot string `json:"jobs_root" yaml:"jobs_root"`

	// QuotesRoot holds one subdirectory per quote with purchasing overage
	// spreadsheets. Optional; overage merging is skipped when empty.
	QuotesRoot string `json:"quotes_root,omitempty" yaml:"quotes_root,omitempty"`

	// ExportFile is the job export file name inside each job directory.
	// Default: "jobExport.txt".
	ExportFile string `json:"export_file,omitempty" yaml:"export_file,omitempty"`

	// BOMGlob matches the BOM export inside a job directory.
	// Default: "*bomExport*.txt".
	BOMGlob string `json:"bom_glob,omitempty" yaml:"bom_glob,omitempty"`

	// ReceivingGlob matches the receiving export inside a job directory.
	// Default: "*receiving*.txt".
	ReceivingGlob string `json:"receiving_glob,omitempty" yaml:"receiving_glob,omitempty"`

	// OverageGlob matches overage spreadsheets inside a quote directory.
	// The first match in lexical order is used. Default: "*.csv".
	OverageGlob string `json:"overage_glob,omitempty" yaml:"overage_glob,omitempty"`
}

// PolicyConfig configures classification and sanitation.
type PolicyConfig struct {
	// ExcludedStatuses are terminal statuses removed before active/held
	// classification. Defaults to the shop's closed/shipped/floor set.
	ExcludedStatuses []string `json:"excluded_statuses,omitempty" yaml:"excluded_statuses,omitempty"`

	// NumericFields are export fields the sanitizer coerces to numbers.
	NumericFields []string `json:"numeric_fields,omitempty" yaml:"numeric_fields,omitempty"`

	// NumericDefault replaces a value that fails numeric coercion.
	// Default: "0".
	NumericDefault string `json:"numeric_default,omitempty" yaml:"numeric_default,omitempty"`

	// DateFields are export fields the sanitizer coerces to dates.
	DateFields []string `json:"date_fields,omitempty" yaml:"date_fields,omitempty"`

	// DateDefault replaces a value that fails date parsing. Default: "".
	DateDefault string `json:"date_default,omitempty" yaml:"date_default,omitempty"`

	// DateLayouts are the accepted input layouts, tried in order.
	DateLayouts []string `json:"date_layouts,omitempty" yaml:"date_layouts,omitempty"`

	// OrderNoWidth is the zero-padded width of the derived relational join
	// key. Default: 7.
	OrderNoWidth int `json:"order_no_width,omitempty" yaml:"order_no_width,omitempty"`
}

// SheetConfig configures the tracking-sheet layout and the sync protocol.
type SheetConfig struct {
	// WOColumn is the sheet column holding the work-order id.
	// Default: "WO#".
	WOColumn string `json:"wo_column,omitempty" yaml:"wo_column,omitempty"`

	// ColumnMapping maps pipeline field names to sheet column titles.
	ColumnMapping map[string]string `json:"column_mapping,omitempty" yaml:"column_mapping,omitempty"`

	// UserEnteredColumns are sheet columns humans type into directly. They
	// are snapshotted before every replace and merged back afterwards.
	UserEnteredColumns []string `json:"user_entered_columns,omitempty" yaml:"user_entered_columns,omitempty"`

	// DeleteBatchSize and InsertBatchSize bound row batches against the
	// sheet API payload limits. Defaults: 240 and 450.
	DeleteBatchSize int `json:"delete_batch_size,omitempty" yaml:"delete_batch_size,omitempty"`
	InsertBatchSize int `json:"insert_batch_size,omitempty" yaml:"insert_batch_size,omitempty"`

	// DesignatorCap is the distinct-designator count above which the
	// summary collapses to "many". Default: 10.
	DesignatorCap int `json:"designator_cap,omitempty" yaml:"designator_cap,omitempty"`

	// DueSoonDays is the width of the due-soon styling band. Default: 7.
	DueSoonDays int `json:"due_soon_days,omitempty" yaml:"due_soon_days,omitempty"`

	// TurnTimeMax is the turn-time threshold (days) at or under which the
	// turn column is highlighted. Default: 5.
	TurnTimeMax float64 `json:"turn_time_max,omitempty" yaml:"turn_time_max,omitempty"`
}

// DefaultExcludedStatuses is the terminal-status set used when the manifest
// does not override it. These are statuses past the point where parts
// readiness matters.
var DefaultExcludedStatuses = []string{
	"Closed", "Shipped", "Closed Short",
	"Prog-Q", "Prog-Done", "Outside Hold", "SMT-Setup", "Hold-Floor", "Floor",
	"Ship-Partial", "Close Short", "CAM Hold", "Packaging", "Thruhole",
	"Outside-Prog", "Programming", "QC Inspection", "Selective Solder",
	"SMT-Done", "FA-Thruhole", "Cancelled",
}

// ApplyDefaults fills zero-valued optional fields with their defaults.
func (m *Manifest) ApplyDefaults() {
	if m.Sources.ExportFile == "" {
		m.Sources.ExportFile = "jobExport.txt"
	}
	if m.Sources.BOMGlob == "" {
		m.Sources.BOMGlob = "*bomExport*.txt"
	}
	if m.Sources.ReceivingGlob == "" {
		m.Sources.ReceivingGlob = "*receiving*.txt"
	}
	if m.Sources.OverageGlob == "" {
		m.Sources.OverageGlob = "*.csv"
	}

	if m.Policy.ExcludedStatuses == nil {
		m.Policy.ExcludedStatuses = append([]string(nil), DefaultExcludedStatuses...)
	}
	if m.Policy.NumericFields == nil {
		m.Policy.NumericFields = []string{"Turn Time"}
	}
	if m.Policy.NumericDefault == "" {
		m.Policy.NumericDefault = "0"
	}
	if m.Policy.DateFields == nil {
		m.Policy.DateFields = []string{"Order Date", "Ship Date"}
	}
	if m.Policy.DateLayouts == nil {
		m.Policy.DateLayouts = []string{"1/2/2006", "01/02/2006", "2006-01-02"}
	}
	if m.Policy.OrderNoWidth == 0 {
		m.Policy.OrderNoWidth = 7
	}

	if m.Sheet.WOColumn == "" {
		m.Sheet.WOColumn = "WO#"
	}
	if m.Sheet.ColumnMapping == nil {
		m.Sheet.ColumnMapping = map[string]string{
			"Order Date":     "Sales Order Date",
			"WO#":            "WO#",
			"Quote#":         "Quote #",
			"Customer":       "Customer",
			"Ship Date":      "Due Date",
			"Turn Time":      "Turn",
			"Ref Des":        "Ref Des",
			"Purchase Parts": "Pur Part",
			"Customer Parts": "Cus Part",
			"PCB Status":     "PCB",
			"Stencil Status": "Stencil",
			"PO Numbers":     "PO #",
		}
	}
	if m.Sheet.UserEnteredColumns == nil {
		m.Sheet.UserEnteredColumns = []string{"Action Notes"}
	}
	if m.Sheet.DeleteBatchSize == 0 {
		m.Sheet.DeleteBatchSize = 240
	}
	if m.Sheet.InsertBatchSize == 0 {
		m.Sheet.InsertBatchSize = 450
	}
	if m.Sheet.DesignatorCap == 0 {
		m.Sheet.DesignatorCap = 10
	}
	if m.Sheet.DueSoonDays == 0 {
		m.Sheet.DueSoonDays = 7
	}
	if m.Sheet.TurnTimeMax == 0 {
		m.Sheet.TurnTimeMax = 5
	}
}
