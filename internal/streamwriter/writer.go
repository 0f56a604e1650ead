// Package streamwriter implements the log stream writer (C5): a
// time-bucketed rotating sink that appends framed (header, body)
// records to a gzip-compressed file in a work directory, then
// atomically renames it into a complete directory once the bucket
// rolls over.
package streamwriter

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/spideroak/old-log-inn/internal/wire"
	"github.com/spideroak/old-log-inn/internal/xerr"
)

// Config configures a Writer.
type Config struct {
	Prefix             string
	Suffix             string
	GranularitySeconds int64
	WorkDir            string
	CompleteDir        string
}

// Writer owns at most one open archive file at a time. It is not safe
// for concurrent use: all operations on one Writer must come from a
// single scheduling context, per the spec's concurrency model.
type Writer struct {
	cfg Config
	now func() time.Time

	open      bool
	bucket    time.Time
	bucketStr string
	workPath  string
	file      *os.File
	gz        *gzip.Writer
}

// New validates cfg and ensures the work and complete directories
// exist, creating them if necessary.
func New(cfg Config) (*Writer, error) {
	if cfg.GranularitySeconds <= 0 {
		return nil, &xerr.ConfigError{Field: "granularity", Reason: "must be positive"}
	}
	if cfg.WorkDir == "" || cfg.CompleteDir == "" {
		return nil, &xerr.ConfigError{Field: "work/complete dir", Reason: "both are required"}
	}

	for _, dir := range []string{cfg.WorkDir, cfg.CompleteDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &xerr.IOError{Op: "create directory " + dir, Err: err}
		}
	}

	return &Writer{cfg: cfg, now: time.Now}, nil
}

// Write appends one record to the archive for the current bucket,
// rolling over first if a different bucket is now current. The gzip
// stream and the underlying file are flushed before returning, so a
// crash loses at most the record currently being written.
func (w *Writer) Write(headerBytes, bodyBytes []byte) error {
	bucket, bucketStr := ComputeBucket(w.now(), w.cfg.GranularitySeconds)

	if w.open && w.bucketStr != bucketStr {
		if err := w.rollover(); err != nil {
			return err
		}
	}
	if !w.open {
		if err := w.openBucket(bucket, bucketStr); err != nil {
			return err
		}
	}

	frame := wire.Frame(len(headerBytes), len(bodyBytes))
	if _, err := w.gz.Write(frame); err != nil {
		return &xerr.IOError{Op: "write frame header", Err: errors.WithStack(err)}
	}
	if _, err := w.gz.Write(headerBytes); err != nil {
		return &xerr.IOError{Op: "write header bytes", Err: errors.WithStack(err)}
	}
	if _, err := w.gz.Write(bodyBytes); err != nil {
		return &xerr.IOError{Op: "write body bytes", Err: errors.WithStack(err)}
	}

	if err := w.gz.Flush(); err != nil {
		return &xerr.IOError{Op: "flush gzip stream", Err: errors.WithStack(err)}
	}
	if err := w.file.Sync(); err != nil {
		return &xerr.IOError{Op: "sync file", Err: errors.WithStack(err)}
	}
	return nil
}

// CheckForRollover performs the same bucket comparison as Write but
// without writing a record, so callers can force timely closure of a
// stale bucket when traffic is sparse. If now is omitted, the Writer's
// clock is used.
func (w *Writer) CheckForRollover(now ...time.Time) error {
	if !w.open {
		return nil
	}
	t := w.now()
	if len(now) > 0 {
		t = now[0]
	}
	_, bucketStr := ComputeBucket(t, w.cfg.GranularitySeconds)
	if bucketStr != w.bucketStr {
		return w.rollover()
	}
	return nil
}

// Close finalizes any open bucket: the currently open archive is
// closed and renamed exactly as on a normal rollover.
func (w *Writer) Close() error {
	if !w.open {
		return nil
	}
	return w.rollover()
}

func (w *Writer) openBucket(bucket time.Time, bucketStr string) error {
	name := w.cfg.Prefix + bucketStr + w.cfg.Suffix
	workPath := filepath.Join(w.cfg.WorkDir, name)

	f, err := os.OpenFile(workPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &xerr.IOError{Op: "create archive " + workPath, Err: err}
	}

	w.file = f
	w.gz = gzip.NewWriter(f)
	w.bucket = bucket
	w.bucketStr = bucketStr
	w.workPath = workPath
	w.open = true
	return nil
}

// rollover closes the gzip stream and underlying file, then atomically
// renames the finished archive from the work directory into the
// complete directory.
func (w *Writer) rollover() error {
	if err := w.gz.Close(); err != nil {
		return &xerr.IOError{Op: "close gzip stream", Err: errors.WithStack(err)}
	}
	if err := w.file.Close(); err != nil {
		return &xerr.IOError{Op: "close archive file", Err: errors.WithStack(err)}
	}

	name := filepath.Base(w.workPath)
	completePath := filepath.Join(w.cfg.CompleteDir, name)
	if err := os.Rename(w.workPath, completePath); err != nil {
		return &xerr.IOError{Op: "rename archive into complete dir", Err: errors.WithStack(err)}
	}

	w.open = false
	w.file = nil
	w.gz = nil
	w.workPath = ""
	return nil
}
