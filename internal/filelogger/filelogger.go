// Package filelogger implements the file logger (C6): it subscribes to
// one PUB endpoint, applies up to four regex predicates, and appends
// passing events to rotating plaintext files keyed by log path.
package filelogger

import (
	"context"
	"log"
	"path/filepath"
	"sync"

	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"

	"github.com/spideroak/old-log-inn/internal/filter"
	"github.com/spideroak/old-log-inn/internal/wire"
	"github.com/spideroak/old-log-inn/internal/xerr"
	"github.com/spideroak/old-log-inn/internal/zmqutil"
)

// Config configures a Sink.
type Config struct {
	SubAddress     string
	OutputDir      string
	PrefixHostname bool
	MaxBytes       int64
	BackupCount    int
	Filter         filter.Filter

	// MaxOpenFiles bounds the number of simultaneously open destination
	// file handles with an LRU eviction policy; zero means unbounded.
	MaxOpenFiles int
}

type subSocket interface {
	Recv() (zmq4.Msg, error)
	Close() error
}

// Sink consumes framed events off a SUB socket, filters them, and
// fans accepted records out to per-filename rotating files.
type Sink struct {
	cfg Config
	sub subSocket

	mu    sync.Mutex
	files *fileCache
}

// New dials cfg.SubAddress with the empty subscription prefix.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.SubAddress == "" {
		return nil, &xerr.ConfigError{Field: "sub address", Reason: "required"}
	}
	if cfg.OutputDir == "" {
		return nil, &xerr.ConfigError{Field: "output dir", Reason: "required"}
	}

	if err := zmqutil.PrepareIPCPath(cfg.SubAddress); err != nil {
		return nil, err
	}

	sub := zmq4.NewSub(ctx)
	if err := sub.Dial(cfg.SubAddress); err != nil {
		return nil, &xerr.IOError{Op: "dial SUB " + cfg.SubAddress, Err: err}
	}
	if err := sub.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		sub.Close()
		return nil, &xerr.IOError{Op: "subscribe " + cfg.SubAddress, Err: err}
	}

	return &Sink{cfg: cfg, sub: sub, files: newFileCache(cfg.MaxOpenFiles)}, nil
}

func newForTest(cfg Config, sub subSocket) *Sink {
	return &Sink{cfg: cfg, sub: sub, files: newFileCache(cfg.MaxOpenFiles)}
}

// Run consumes messages until ctx is canceled or the socket reports a
// non-interrupt error.
func (s *Sink) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, err := s.sub.Recv()
		if err != nil {
			if zmqutil.IsInterrupted(err) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return &xerr.IOError{Op: "SUB recv", Err: errors.WithStack(err)}
		}
		if err := s.handle(msg); err != nil {
			log.Printf("filelogger: dropping message: %v", err)
		}
	}
}

// handle decodes one three-frame PUB message, evaluates the header
// predicates before touching the body, and if it still passes,
// decompresses the body and evaluates the body regex.
func (s *Sink) handle(msg zmq4.Msg) error {
	if len(msg.Frames) != 3 {
		return &wire.FrameError{Reason: "expected 3 frames (topic, header, body) on SUB socket"}
	}
	compressedHeader, compressedBody := msg.Frames[1], msg.Frames[2]

	header, err := wire.DecodeHeader(compressedHeader)
	if err != nil {
		return err
	}

	if !s.cfg.Filter.MatchesHeader(header.Hostname, header.Nodename, header.LogPath) {
		return nil
	}

	body, err := wire.DecodeBody(compressedBody)
	if err != nil {
		return err
	}
	if !s.cfg.Filter.MatchesBody(body) {
		return nil
	}

	return s.write(header, body)
}

func (s *Sink) destinationName(header wire.Header) string {
	base := filepath.Base(header.LogPath)
	if s.cfg.PrefixHostname && header.Hostname != "" {
		return header.Hostname + "_" + base
	}
	return base
}

func (s *Sink) write(header wire.Header, body string) error {
	name := s.destinationName(header)

	s.mu.Lock()
	rf, ok := s.files.get(name)
	if !ok {
		var err error
		rf, err = openRotatingFile(filepath.Join(s.cfg.OutputDir, name), s.cfg.MaxBytes, s.cfg.BackupCount)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.files.put(name, rf)
	}
	s.mu.Unlock()

	line := body
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line += "\n"
	}
	return rf.Write([]byte(line))
}

// Close flushes and closes every open destination file, then the SUB
// socket.
func (s *Sink) Close() error {
	s.mu.Lock()
	firstErr := s.files.closeAll()
	s.mu.Unlock()

	if err := s.sub.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
