// Package engine executes backup jobs: it enumerates candidate files with
// include/exclude globs and mirrors changed files into the destination tree.
package engine

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dustin/go-humanize"

	"maxbackup/internal/backup"
	maxfs "maxbackup/internal/fs"
	"maxbackup/internal/pathexp"
	"maxbackup/internal/userconfig"
)

// Pacing defaults. The throttle keeps a worker from saturating I/O; the
// progress interval bounds log volume on large trees.
const (
	defaultThrottleAfter = 500 * time.Millisecond
	defaultThrottlePause = 10 * time.Millisecond
	defaultProgressEvery = 30 * time.Second
)

// cloudPlaceholderName matches cloud-provider placeholder files: a dot
// followed by a 32-36 char hex/dash identifier. Only names of length 33 or
// 37 qualify.
var cloudPlaceholderName = regexp.MustCompile(`^\.[0-9A-Fa-f-]{32,36}$`)

// Implicit excludes applied when a job's source is the root of a volume.
var volumeRootExcludes = []string{
	"$RECYCLE.BIN/**",
	"System Volume Information/**",
	"**/*~",
}

// Runner executes jobs against a filesystem. One Runner is shared by all
// jobs of a worker; it holds no per-job state.
type Runner struct {
	fsys   backup.Filesystem
	clock  backup.Clock
	logger backup.Logger

	throttleAfter time.Duration
	throttlePause time.Duration
	progressEvery time.Duration
}

// NewRunner creates a Runner with default pacing.
func NewRunner(fsys backup.Filesystem, clock backup.Clock, logger backup.Logger) *Runner {
	return &Runner{
		fsys:          fsys,
		clock:         clock,
		logger:        logger,
		throttleAfter: defaultThrottleAfter,
		throttlePause: defaultThrottlePause,
		progressEvery: defaultProgressEvery,
	}
}

// RunJob mirrors one job. Single-file failures are classified into the
// stats counters and never abort the job; cancellation is observed as a
// normal return between files.
func (r *Runner) RunJob(ctx context.Context, job userconfig.Job, home string) backup.RunStats {
	var stats backup.RunStats

	source := filepath.Clean(pathexp.Expand(job.Source, home))
	destination := filepath.Clean(pathexp.Expand(job.Destination, home))

	info, err := r.fsys.Stat(source)
	if err != nil || !info.IsDir() {
		r.logger.Warn("source directory does not exist, skipping job", "job", job.Name, "source", source)
		return stats
	}

	if err := r.fsys.MkdirAll(destination, 0755); err != nil {
		r.logger.Error("cannot create destination directory", "job", job.Name, "destination", destination, "error", err)
		return stats
	}

	matcher := newMatcher(job.Include, job.Exclude, isVolumeRoot(source))

	files, err := r.enumerate(ctx, source, matcher)
	if err != nil {
		// Cancelled during enumeration: abort before any copy.
		return stats
	}

	r.logger.Info("job started", "job", job.Name, "source", source, "destination", destination, "files", len(files))

	total := len(files)
	lastPause := r.clock.Now()
	lastReport := r.clock.Now()

	for i, rel := range files {
		if ctx.Err() != nil {
			r.logger.Info("job cancelled", "job", job.Name, "processed", i, "total", total)
			return stats
		}

		r.mirrorFile(job.Name, source, destination, rel, &stats)

		now := r.clock.Now()
		if now.Sub(lastPause) >= r.throttleAfter {
			sleepCtx(ctx, r.throttlePause)
			lastPause = now
		}
		if now.Sub(lastReport) >= r.progressEvery {
			r.logger.Info("job progress", "job", job.Name, "percent", (i+1)*100/total, "processed", i+1, "total", total)
			lastReport = now
		}
	}

	r.summarize(job.Name, total, stats)
	return stats
}

// enumerate collects the slash-relative paths of all matching files under
// source. Returns an error only when ctx is cancelled.
func (r *Runner) enumerate(ctx context.Context, source string, m *matcher) ([]string, error) {
	var files []string

	err := r.fsys.WalkDir(source, func(p string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			r.logger.Warn("cannot enumerate path", "path", p, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(source, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !m.matches(rel) {
			return nil
		}
		if r.isCloudPlaceholder(p) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		// The walk callback only propagates cancellation.
		return nil, err
	}
	return files, nil
}

// isCloudPlaceholder reports whether the file is a cloud-provider
// placeholder that should be skipped: the name pattern must match and the
// file must carry the system attribute. When the attribute cannot be read
// the file is kept.
func (r *Runner) isCloudPlaceholder(p string) bool {
	name := filepath.Base(p)
	if len(name) != 33 && len(name) != 37 {
		return false
	}
	if !cloudPlaceholderName.MatchString(name) {
		return false
	}
	has, known := r.fsys.HasSystemAttribute(p)
	return known && has
}

// mirrorFile copies one file if the destination is missing or differs by
// last-write time, classifying failures into stats.
func (r *Runner) mirrorFile(jobName, source, destination, rel string, stats *backup.RunStats) {
	src := filepath.Join(source, filepath.FromSlash(rel))
	dst := filepath.Join(destination, filepath.FromSlash(rel))

	if err := r.fsys.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		r.logger.Error("cannot create destination parent", "job", jobName, "path", dst, "error", err)
		stats.ErrorCount++
		return
	}

	if dstInfo, err := r.fsys.Stat(dst); err == nil {
		if err := r.fsys.ClearHiddenReadOnly(dst); err != nil {
			r.logger.Debug("cannot clear destination attributes", "path", dst, "error", err)
		}
		srcInfo, err := r.fsys.Stat(src)
		if err != nil {
			r.classifyCopyError(jobName, src, err, stats)
			return
		}
		if srcInfo.ModTime().UTC().Equal(dstInfo.ModTime().UTC()) {
			stats.UpToDateCount++
			return
		}
	}

	n, err := r.fsys.CopyFile(src, dst)
	if err != nil {
		r.classifyCopyError(jobName, src, err, stats)
		return
	}
	stats.BackupCount++
	stats.ByteCount += uint64(n)

	if err := r.fsys.CopyTimes(src, dst); err != nil {
		r.logger.Warn("cannot propagate timestamps", "job", jobName, "path", dst, "error", err)
	}
}

// classifyCopyError buckets a per-file failure: vanished sources are
// missing, everything else is an error. The job always continues.
func (r *Runner) classifyCopyError(jobName, src string, err error, stats *backup.RunStats) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r.logger.Debug("source file vanished", "job", jobName, "path", src)
		stats.MissingCount++
	case maxfs.IsSharingViolation(err), errors.Is(err, fs.ErrPermission):
		r.logger.Warn("cannot read source file", "job", jobName, "path", src, "error", err)
		stats.ErrorCount++
	default:
		r.logger.Error("copy failed", "job", jobName, "path", src, "error", err)
		stats.ErrorCount++
	}
}

func (r *Runner) summarize(jobName string, total int, stats backup.RunStats) {
	if stats.BackupCount == 0 && stats.ErrorCount == 0 && stats.MissingCount == 0 {
		r.logger.Info("job complete, all files up to date", "job", jobName, "files", total)
		return
	}
	r.logger.Info("job complete",
		"job", jobName,
		"copied", stats.BackupCount,
		"upToDate", stats.UpToDateCount,
		"size", humanize.Bytes(stats.ByteCount),
	)
	if stats.ErrorCount > 0 {
		r.logger.Warn("job finished with errors", "job", jobName, "errors", stats.ErrorCount)
	}
	if stats.MissingCount > 0 {
		r.logger.Warn("files vanished during job", "job", jobName, "missing", stats.MissingCount)
	}
}

// isVolumeRoot reports whether path is the root of a drive or volume.
func isVolumeRoot(path string) bool {
	return filepath.Dir(path) == path
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
