package models

import "time"

// ExportSummary describes the outcome of one export run.
//
// Fields:
//   - Mode: "sql" for raw SQL input, "filter" for generated queries.
//   - Written: records serialized to every output.
//   - Skipped: rows dropped because of a mapping error (skip policy only).
//   - Excluded: rows dropped by post-filter rules (zero magic, cancelled).
//   - Elapsed: wall time from query execution to the final flush.
type ExportSummary struct {
	Mode     string        `json:"mode" example:"filter"`
	Written  int           `json:"written" example:"100"`
	Skipped  int           `json:"skipped" example:"0"`
	Excluded int           `json:"excluded" example:"2"`
	Elapsed  time.Duration `json:"elapsed_ns" example:"1500000"`
}
