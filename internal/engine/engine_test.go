package engine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"maxbackup/internal/backup"
	"maxbackup/internal/engine"
	"maxbackup/internal/testutil"
	"maxbackup/internal/userconfig"
)

var t0 = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func docsJob() userconfig.Job {
	return userconfig.Job{
		Name:        "documents",
		Source:      "~/docs",
		Destination: "/mnt/mirror/docs",
		Include:     []string{"**/*"},
	}
}

func newRunner(fsys backup.Filesystem, logger backup.Logger) *engine.Runner {
	if logger == nil {
		logger = backup.Discard
	}
	return engine.NewRunner(fsys, testutil.NewFakeClock(t0), logger)
}

func TestRunJob_CopiesThenIdempotent(t *testing.T) {
	fsys := testutil.NewMockFilesystem()
	fsys.AddFile("/home/alice/docs/a.txt", []byte("alpha"), t0)
	fsys.AddFile("/home/alice/docs/b.txt", []byte("beta"), t0)

	r := newRunner(fsys, nil)
	job := docsJob()

	stats := r.RunJob(context.Background(), job, "/home/alice")
	if stats.BackupCount != 2 || stats.UpToDateCount != 0 {
		t.Fatalf("first run stats = %+v, want 2 copied", stats)
	}
	if stats.ByteCount != uint64(len("alpha")+len("beta")) {
		t.Errorf("ByteCount = %d", stats.ByteCount)
	}
	if !fsys.SameContent("/mnt/mirror/docs/a.txt", []byte("alpha")) {
		t.Error("a.txt not mirrored")
	}
	if !fsys.SameContent("/mnt/mirror/docs/b.txt", []byte("beta")) {
		t.Error("b.txt not mirrored")
	}

	// No changes: everything is up to date, nothing is copied.
	stats = r.RunJob(context.Background(), job, "/home/alice")
	if stats.BackupCount != 0 || stats.UpToDateCount != 2 {
		t.Fatalf("second run stats = %+v, want 2 up to date", stats)
	}

	// Touch one source file: only it is recopied.
	fsys.File("/home/alice/docs/a.txt").ModTime = t0.Add(time.Hour)
	stats = r.RunJob(context.Background(), job, "/home/alice")
	if stats.BackupCount != 1 || stats.UpToDateCount != 1 {
		t.Fatalf("third run stats = %+v, want 1 copied 1 up to date", stats)
	}
}

func TestRunJob_NestedDirectories(t *testing.T) {
	fsys := testutil.NewMockFilesystem()
	fsys.AddFile("/home/alice/docs/sub/deep/c.txt", []byte("gamma"), t0)

	stats := newRunner(fsys, nil).RunJob(context.Background(), docsJob(), "/home/alice")
	if stats.BackupCount != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if !fsys.SameContent("/mnt/mirror/docs/sub/deep/c.txt", []byte("gamma")) {
		t.Error("nested file not mirrored at relative path")
	}
}

func TestRunJob_MissingSource(t *testing.T) {
	fsys := testutil.NewMockFilesystem()
	logger := testutil.NewCaptureLogger()

	stats := newRunner(fsys, logger).RunJob(context.Background(), docsJob(), "/home/alice")

	if stats != (backup.RunStats{}) {
		t.Errorf("stats = %+v, want all zero", stats)
	}
	if !logger.Contains("WARN", "source directory does not exist") {
		t.Error("expected a warning about the missing source")
	}
	// The destination tree must not be created for a skipped job.
	if _, err := fsys.Stat("/mnt/mirror/docs"); err == nil {
		t.Error("destination directory was created")
	}
}

func TestRunJob_IncludeExclude(t *testing.T) {
	fsys := testutil.NewMockFilesystem()
	fsys.AddFile("/home/alice/docs/keep.txt", []byte("k"), t0)
	fsys.AddFile("/home/alice/docs/skip.tmp", []byte("s"), t0)
	fsys.AddFile("/home/alice/docs/sub/also.txt", []byte("a"), t0)
	fsys.AddFile("/home/alice/docs/sub/also.tmp", []byte("x"), t0)

	job := docsJob()
	job.Include = []string{"**/*.txt"}
	job.Exclude = []string{"sub/**"}

	stats := newRunner(fsys, nil).RunJob(context.Background(), job, "/home/alice")
	if stats.BackupCount != 1 {
		t.Fatalf("stats = %+v, want exactly keep.txt copied", stats)
	}
	if fsys.File("/mnt/mirror/docs/skip.tmp") != nil {
		t.Error("excluded extension was copied")
	}
	if fsys.File("/mnt/mirror/docs/sub/also.txt") != nil {
		t.Error("excluded subtree was copied")
	}
}

func TestRunJob_ErrorClassification(t *testing.T) {
	t.Run("sharing violation counts as error and continues", func(t *testing.T) {
		fsys := testutil.NewMockFilesystem()
		fsys.AddFile("/home/alice/docs/locked.txt", []byte("l"), t0)
		fsys.AddFile("/home/alice/docs/ok.txt", []byte("o"), t0)
		fsys.CopyErr["/home/alice/docs/locked.txt"] = backup.ErrInUse

		logger := testutil.NewCaptureLogger()
		stats := newRunner(fsys, logger).RunJob(context.Background(), docsJob(), "/home/alice")

		if stats.ErrorCount != 1 || stats.BackupCount != 1 {
			t.Fatalf("stats = %+v, want 1 error 1 copied", stats)
		}
		if !logger.Contains("WARN", "cannot read source file") {
			t.Error("sharing violation should log a warning")
		}
	})

	t.Run("vanished source counts as missing", func(t *testing.T) {
		fsys := testutil.NewMockFilesystem()
		fsys.AddFile("/home/alice/docs/gone.txt", []byte("g"), t0)
		fsys.AddFile("/home/alice/docs/ok.txt", []byte("o"), t0)

		// Vanish the file after enumeration, before its copy.
		vanishing := &vanishBeforeCopy{MockFilesystem: fsys, path: "/home/alice/docs/gone.txt"}

		stats := newRunner(vanishing, nil).RunJob(context.Background(), docsJob(), "/home/alice")
		if stats.MissingCount != 1 || stats.BackupCount != 1 {
			t.Fatalf("stats = %+v, want 1 missing 1 copied", stats)
		}
	})

	t.Run("counters sum to enumerated files", func(t *testing.T) {
		fsys := testutil.NewMockFilesystem()
		fsys.AddFile("/home/alice/docs/a.txt", []byte("a"), t0)
		fsys.AddFile("/home/alice/docs/b.txt", []byte("b"), t0)
		fsys.AddFile("/home/alice/docs/c.txt", []byte("c"), t0)
		fsys.CopyErr["/home/alice/docs/b.txt"] = backup.ErrInUse

		stats := newRunner(fsys, nil).RunJob(context.Background(), docsJob(), "/home/alice")
		sum := stats.BackupCount + stats.UpToDateCount + stats.ErrorCount + stats.MissingCount
		if sum != 3 {
			t.Errorf("counter sum = %d, want 3 (stats %+v)", sum, stats)
		}
	})
}

func TestRunJob_CloudPlaceholders(t *testing.T) {
	placeholder := "." + strings.Repeat("0", 32) // 33 chars

	fsys := testutil.NewMockFilesystem()
	fsys.AddFile("/home/alice/docs/"+placeholder, []byte("p"), t0).System = true
	fsys.AddFile("/home/alice/docs/plain.txt", []byte("t"), t0)

	stats := newRunner(fsys, nil).RunJob(context.Background(), docsJob(), "/home/alice")
	if stats.BackupCount != 1 {
		t.Fatalf("stats = %+v, want placeholder skipped", stats)
	}
	if fsys.File("/mnt/mirror/docs/"+placeholder) != nil {
		t.Error("system placeholder was copied")
	}

	t.Run("without system attribute the file is kept", func(t *testing.T) {
		fsys := testutil.NewMockFilesystem()
		fsys.AddFile("/home/alice/docs/"+placeholder, []byte("p"), t0)

		stats := newRunner(fsys, nil).RunJob(context.Background(), docsJob(), "/home/alice")
		if stats.BackupCount != 1 {
			t.Errorf("stats = %+v, want placeholder copied", stats)
		}
	})
}

func TestRunJob_Cancellation(t *testing.T) {
	t.Run("cancelled before run copies nothing", func(t *testing.T) {
		fsys := testutil.NewMockFilesystem()
		fsys.AddFile("/home/alice/docs/a.txt", []byte("a"), t0)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		stats := newRunner(fsys, nil).RunJob(ctx, docsJob(), "/home/alice")
		if stats.BackupCount != 0 {
			t.Errorf("stats = %+v, want nothing copied", stats)
		}
	})

	t.Run("cancelled mid-run finishes the current file only", func(t *testing.T) {
		fsys := testutil.NewMockFilesystem()
		fsys.AddFile("/home/alice/docs/a.txt", []byte("a"), t0)
		fsys.AddFile("/home/alice/docs/b.txt", []byte("b"), t0)
		fsys.AddFile("/home/alice/docs/c.txt", []byte("c"), t0)

		ctx, cancel := context.WithCancel(context.Background())
		cancelling := &cancelAfterFirstCopy{MockFilesystem: fsys, cancel: cancel}

		stats := newRunner(cancelling, nil).RunJob(ctx, docsJob(), "/home/alice")
		if stats.BackupCount != 1 {
			t.Errorf("stats = %+v, want exactly one file copied before cancellation", stats)
		}
	})
}

// vanishBeforeCopy removes path right before the engine tries to copy it.
type vanishBeforeCopy struct {
	*testutil.MockFilesystem
	path string
}

func (v *vanishBeforeCopy) CopyFile(src, dst string) (int64, error) {
	if src == v.path {
		v.RemoveFile(v.path)
	}
	return v.MockFilesystem.CopyFile(src, dst)
}

// cancelAfterFirstCopy cancels the run's context on the first copy.
type cancelAfterFirstCopy struct {
	*testutil.MockFilesystem
	cancel context.CancelFunc
	copied bool
}

func (c *cancelAfterFirstCopy) CopyFile(src, dst string) (int64, error) {
	n, err := c.MockFilesystem.CopyFile(src, dst)
	if !c.copied {
		c.copied = true
		c.cancel()
	}
	return n, err
}
