package streamwriter

import (
	"compress/gzip"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/spideroak/old-log-inn/internal/wire"
	"github.com/spideroak/old-log-inn/internal/xerr"
)

// Reader is a pull-mode, forward-only cursor over the records in one
// archive file. It is finite and non-restartable: once Next returns
// io.EOF it continues to return io.EOF.
type Reader struct {
	file *os.File
	gz   *gzip.Reader
	done bool
}

// OpenReader opens the gzip-wrapped archive at path for reading.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &xerr.IOError{Op: "open archive " + path, Err: err}
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, &xerr.IOError{Op: "open gzip stream for " + path, Err: err}
	}
	return &Reader{file: f, gz: gz}, nil
}

// Next returns the next (header, body) record, looping to end-of-file.
// It returns io.EOF once the archive is exhausted.
func (r *Reader) Next() (headerBytes, bodyBytes []byte, err error) {
	if r.done {
		return nil, nil, io.EOF
	}

	frameBuf := make([]byte, wire.FrameSize())
	if _, err := io.ReadFull(r.gz, frameBuf); err != nil {
		r.done = true
		if err == io.EOF {
			return nil, nil, io.EOF
		}
		return nil, nil, &wire.FrameError{Reason: "truncated frame header: " + err.Error()}
	}

	_, headerLen, bodyLen, err := wire.Unframe(frameBuf)
	if err != nil {
		r.done = true
		return nil, nil, err
	}

	headerBytes = make([]byte, headerLen)
	if _, err := io.ReadFull(r.gz, headerBytes); err != nil {
		r.done = true
		return nil, nil, &wire.FrameError{Reason: "truncated header bytes: " + err.Error()}
	}

	bodyBytes = make([]byte, bodyLen)
	if _, err := io.ReadFull(r.gz, bodyBytes); err != nil {
		r.done = true
		return nil, nil, &wire.FrameError{Reason: "truncated body bytes: " + err.Error()}
	}

	return headerBytes, bodyBytes, nil
}

// Close releases the underlying gzip stream and file handle.
func (r *Reader) Close() error {
	gzErr := r.gz.Close()
	fileErr := r.file.Close()
	if gzErr != nil {
		return errors.WithStack(gzErr)
	}
	if fileErr != nil {
		return errors.WithStack(fileErr)
	}
	return nil
}
