package models

import "time"

// RunSummary aggregates the outcome of one ingestion run.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	ProductsTotal  int
	ProductsFailed int
	ProductsEmpty  int

	RowsScraped    int
	RowsDropped    int
	Duplicates     int
	RecordsFailed  int
	EstimatedDates int
	Inserted       int

	InsertedByProduct map[string]int
	FailedProducts    []string
}
