package backup

import "time"

// RunStats accumulates the outcome of one job run. Counters are 64-bit so
// large trees and multi-gigabyte totals never wrap.
type RunStats struct {
	BackupCount   uint64
	UpToDateCount uint64
	ErrorCount    uint64
	MissingCount  uint64
	ByteCount     uint64
}

// Run is one recorded job execution.
type Run struct {
	ID         string
	SID        string
	Job        string
	StartedAt  time.Time
	FinishedAt time.Time
	Stats      RunStats
}

// RunRecorder persists job run summaries. Recording is best-effort from the
// worker's perspective: a failed write is logged, never fatal.
type RunRecorder interface {
	RecordRun(run Run) error
	RecentRuns(sid string, limit int) ([]Run, error)
}

// NopRecorder discards runs. Use in tests and when history is disabled.
type NopRecorder struct{}

func (NopRecorder) RecordRun(Run) error                   { return nil }
func (NopRecorder) RecentRuns(string, int) ([]Run, error) { return nil, nil }
