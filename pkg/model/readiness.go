package model

// Fabrication status values for PCB and stencil milestones.
const (
	FabComplete = "Complete"
	FabNone     = "None"
)

// DesignatorOverflow is emitted in place of a designator list once more than
// the configured cap of distinct designators accumulate for one work order.
// It keeps the downstream sheet column readable.
const DesignatorOverflow = "many"

// ReadinessView is the per-work-order parts/PCB/stencil verdict derived from
// the merged BOM table. It is recomputed from scratch every cycle.
type ReadinessView struct {
	WorkOrder string `json:"wo"`

	MissingPurchaseParts bool `json:"missing_purchase_parts"`
	MissingCustomerParts bool `json:"missing_customer_parts"`

	// PurchaseDesignators and CustomerDesignators summarize the first
	// designator of each shorted line: a sorted, comma-joined, deduplicated
	// list, or DesignatorOverflow above the cap.
	PurchaseDesignators string `json:"purchase_designators,omitempty"`
	CustomerDesignators string `json:"customer_designators,omitempty"`

	PCBStatus     string `json:"pcb_status"`
	StencilStatus string `json:"stencil_status"`

	PONumbers []int `json:"po_numbers,omitempty"`
}

// UserEnteredRow holds the columns a human may have typed directly into the
// sheet, captured before every destructive replace. The sheet is the only
// authoritative source for these values.
type UserEnteredRow struct {
	RowID     int64             `json:"row_id"`
	WorkOrder string            `json:"wo"`
	Values    map[string]string `json:"values"`
}
