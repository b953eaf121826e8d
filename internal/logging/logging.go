package logging

import (
	"log/slog"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"maxbackup/internal/backup"
)

// retainedFiles is how many rotated log files are kept.
const retainedFiles = 7

// RollingLogger is a backup.Logger writing to a rolling file. Files rotate
// at local midnight and on size overflow; the last seven are retained.
type RollingLogger struct {
	logger *slog.Logger
	sink   *lumberjack.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// NewRollingLogger opens (creating directories as needed) a rolling log at
// path. scope tags every record, distinguishing the service log from
// per-user worker logs.
func NewRollingLogger(path, scope string, level slog.Level) *RollingLogger {
	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: retainedFiles,
		MaxAge:     retainedFiles, // days
	}

	l := &RollingLogger{
		logger: slog.New(newTabHandler(sink, scope, level)),
		sink:   sink,
		stop:   make(chan struct{}),
	}
	go l.rotateDaily()
	return l
}

func (l *RollingLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *RollingLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *RollingLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *RollingLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// Close stops the rotation timer and closes the sink.
func (l *RollingLogger) Close() error {
	l.stopOnce.Do(func() { close(l.stop) })
	return l.sink.Close()
}

// rotateDaily forces a rotation at each local midnight so log files map to
// calendar days regardless of volume.
func (l *RollingLogger) rotateDaily() {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-l.stop:
			timer.Stop()
			return
		case <-timer.C:
			l.sink.Rotate()
		}
	}
}

var _ backup.Logger = (*RollingLogger)(nil)
