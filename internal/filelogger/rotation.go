package filelogger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spideroak/old-log-inn/internal/xerr"
)

// rotatingFile is an append-mode file handle that rolls itself over to
// numbered backups once it exceeds maxBytes, keeping at most
// backupCount old generations. maxBytes <= 0 disables rotation.
type rotatingFile struct {
	path        string
	maxBytes    int64
	backupCount int
	file        *os.File
	size        int64
}

func openRotatingFile(path string, maxBytes int64, backupCount int) (*rotatingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &xerr.IOError{Op: "create directory for " + path, Err: err}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &xerr.IOError{Op: "open " + path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &xerr.IOError{Op: "stat " + path, Err: err}
	}
	return &rotatingFile{
		path:        path,
		maxBytes:    maxBytes,
		backupCount: backupCount,
		file:        f,
		size:        info.Size(),
	}, nil
}

// Write appends buf, flushing immediately, and rotates first if the
// write would push the file past maxBytes.
func (r *rotatingFile) Write(buf []byte) error {
	if r.maxBytes > 0 && r.size+int64(len(buf)) > r.maxBytes && r.size > 0 {
		if err := r.rotate(); err != nil {
			return err
		}
	}
	n, err := r.file.Write(buf)
	if err != nil {
		return &xerr.IOError{Op: "write " + r.path, Err: err}
	}
	r.size += int64(n)
	return r.file.Sync()
}

func (r *rotatingFile) rotate() error {
	if err := r.file.Close(); err != nil {
		return &xerr.IOError{Op: "close " + r.path, Err: err}
	}

	if r.backupCount > 0 {
		for i := r.backupCount - 1; i >= 1; i-- {
			src := fmt.Sprintf("%s.%d", r.path, i)
			dst := fmt.Sprintf("%s.%d", r.path, i+1)
			if _, err := os.Stat(src); err == nil {
				os.Rename(src, dst)
			}
		}
		os.Rename(r.path, r.path+".1")
	}

	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &xerr.IOError{Op: "reopen " + r.path, Err: err}
	}
	r.file = f
	r.size = 0
	return nil
}

func (r *rotatingFile) Close() error {
	return r.file.Close()
}
