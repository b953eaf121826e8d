package history_test

import (
	"path/filepath"
	"testing"
	"time"

	"maxbackup/internal/backup"
	"maxbackup/internal/history"
)

func newStore(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func run(id, sid, job string, at time.Time) backup.Run {
	return backup.Run{
		ID:         id,
		SID:        sid,
		Job:        job,
		StartedAt:  at,
		FinishedAt: at.Add(time.Minute),
		Stats: backup.RunStats{
			BackupCount: 3,
			ByteCount:   4096,
		},
	}
}

func TestStore_RecordAndQuery(t *testing.T) {
	s := newStore(t)
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	if err := s.RecordRun(run("r1", "S-1", "documents", base)); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	if err := s.RecordRun(run("r2", "S-1", "pictures", base.Add(time.Hour))); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	if err := s.RecordRun(run("r3", "S-2", "documents", base)); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	runs, err := s.RecentRuns("S-1", 10)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	// Newest first.
	if runs[0].ID != "r2" || runs[1].ID != "r1" {
		t.Errorf("run order = %s, %s", runs[0].ID, runs[1].ID)
	}
	if runs[0].Job != "pictures" {
		t.Errorf("Job = %q", runs[0].Job)
	}
	if runs[1].Stats.BackupCount != 3 || runs[1].Stats.ByteCount != 4096 {
		t.Errorf("Stats = %+v", runs[1].Stats)
	}
	if !runs[1].StartedAt.Equal(base) {
		t.Errorf("StartedAt = %v, want %v", runs[1].StartedAt, base)
	}
}

func TestStore_RecentRunsLimit(t *testing.T) {
	s := newStore(t)
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		r := run("r"+string(rune('a'+i)), "S-1", "documents", base.Add(time.Duration(i)*time.Hour))
		if err := s.RecordRun(r); err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
	}

	runs, err := s.RecentRuns("S-1", 2)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("len(runs) = %d, want 2", len(runs))
	}
}

func TestStore_UnknownSID(t *testing.T) {
	s := newStore(t)
	runs, err := s.RecentRuns("S-9", 10)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("len(runs) = %d, want 0", len(runs))
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := history.NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := s.RecordRun(run("r1", "S-1", "documents", time.Now().UTC())); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	s.Close()

	s, err = history.NewStore(path)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer s.Close()

	runs, err := s.RecentRuns("S-1", 10)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("len(runs) = %d, want 1 after reopen", len(runs))
	}
}
