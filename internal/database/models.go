package database

import "time"

// Run is one pipeline invocation.
type Run struct {
	ID         string // ULID
	InputPath  string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running or after a crash
	Counts     RunCounts
	Error      string
}

// RunCounts are the per-stage totals recorded when a run finishes.
type RunCounts struct {
	InputRows   int
	Resolved    int
	Unresolved  int
	Enriched    int
	Hijack      int
	Alternative int
}

// Baseline is a cached community score median.
type Baseline struct {
	Community  string
	Median     float64
	SampleSize int
	SampledAt  time.Time
}

// Stats contains aggregate database statistics.
type Stats struct {
	Runs          int
	Opportunities int
	Hijack        int
	Baselines     int
}
