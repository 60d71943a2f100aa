package model

// Sentinel part numbers. Lines carrying these represent fabrication and
// stencil milestones, not purchasable parts, and are excluded from all
// parts-shortage logic.
const (
	PartNumberPCB     = "PCB"
	PartNumberStencil = "STENCIL"
)

// BOMLine is one part line belonging to a work order, parsed from the
// pipe-delimited BOM export and merged with purchasing overage data.
type BOMLine struct {
	WorkOrder   string  `json:"wo"`
	Quote       string  `json:"quote"`
	PartNumber  string  `json:"part_number"`
	MPN         string  `json:"mpn"`
	Description string  `json:"description"`
	Designators string  `json:"designators"`
	RequiredQty float64 `json:"required_qty"`
	ReceivedQty float64 `json:"received_qty"`

	// CompletionDate is the raw completion field from the export. For PCB
	// and STENCIL sentinel lines it decides the fabrication verdict.
	CompletionDate string `json:"completion_date"`

	CustomerSupplied bool `json:"customer_supplied"`
}

// IsSentinel reports whether the line is a PCB or STENCIL milestone line.
func (l BOMLine) IsSentinel() bool {
	return l.PartNumber == PartNumberPCB || l.PartNumber == PartNumberStencil
}
