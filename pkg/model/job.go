// Package model defines the records flowing through the tracking pipeline:
// work orders ingested from job export files, BOM lines, credit-hold state,
// derived readiness views, and the user-entered sheet snapshot.
package model

// JobRecord is one assembly work order, assembled from its job export file
// and refreshed on every ingestion cycle.
//
// The typed fields are the ones the pipeline actually branches on. Any other
// key the export happens to carry is preserved in Extra so unexpected
// upstream columns survive a round trip through the cache.
type JobRecord struct {
	WorkOrder  string `json:"wo"`
	Quote      string `json:"quote"`
	Customer   string `json:"customer"`
	Status     string `json:"status"`
	CreditHold bool   `json:"credit_hold"`
	OrderDate  string `json:"order_date"`
	ShipDate   string `json:"ship_date"`
	TurnTime   float64 `json:"turn_time"`

	// InternalStatus is a free-text computed field, blank after ingestion.
	InternalStatus string `json:"internal_status"`

	// SourcePath and SourceMTime identify the export file this record was
	// parsed from. SourceMTime is nanoseconds since the epoch and is the
	// cache fingerprint: an unchanged mtime means the cached parse is reused.
	SourcePath  string `json:"source_path"`
	SourceMTime int64  `json:"source_mtime_ns"`

	Extra map[string]string `json:"extra,omitempty"`
}

// CreditHoldRecord tracks one work order's hold lifecycle.
//
// TrackingDate is set when the hold is first observed. ReleaseDate is set in
// the cycle the work order leaves the authoritative hold set; a record with a
// release date must have appeared in the hold set in an earlier cycle.
type CreditHoldRecord struct {
	WorkOrder    string `json:"wo"`
	TrackingDate string `json:"tracking_date"`
	ReleaseDate  string `json:"release_date,omitempty"`

	// Source records which hold signal produced this record: "file", "db",
	// or "both".
	Source string `json:"source,omitempty"`
}
