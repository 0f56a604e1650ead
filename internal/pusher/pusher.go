// Package pusher implements the log line pusher (C2): a producer-side
// component that frames and sends log lines to one or more PUSH
// endpoints, tagging each with identity metadata (hostname, a per-
// instance uuid, a monotonic sequence number, pid, timestamp, and the
// logical log_path).
package pusher

import (
	"context"
	"encoding/hex"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spideroak/old-log-inn/internal/wire"
	"github.com/spideroak/old-log-inn/internal/xerr"
	"github.com/spideroak/old-log-inn/internal/zmqutil"
)

// Environment variable names read by NewFromEnv, per the external
// interfaces section of the spec.
const (
	EnvPushEndpoints = "PYTHON_ZMQ_LOG_HANDLER"
	EnvNodeName      = "ZMQ_LOG_NODE_NAME"
	EnvHostname      = "HOSTNAME"
)

// lingerDuration bounds how long process exit waits on an unreachable
// PUSH peer: long enough not to drop buffered output immediately, short
// enough not to hang a shutdown indefinitely.
const lingerDuration = 5 * time.Second

// newUUIDHex returns a 128-bit random identifier as 32 lowercase hex
// characters with no dashes, matching the original pusher's
// `self._uuid.hex`.
func newUUIDHex() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// pushSocket is the subset of zmq4.Socket that Pusher relies on. It
// exists so tests can substitute a fake without a live ZeroMQ context.
type pushSocket interface {
	SendMulti(msg zmq4.Msg) error
	Close() error
}

// Pusher sends framed log events to every configured PUSH endpoint. One
// Pusher owns its uuid and sequence for the lifetime of the owning
// process; Close destroys both.
type Pusher struct {
	hostname string
	nodename string
	logPath  string
	uuid     string
	sequence int64 // atomic

	mu      sync.Mutex
	sockets []pushSocket
}

// New dials a PUSH socket to every address in endpoints and returns a
// Pusher that will tag every event with logPath.
func New(ctx context.Context, logPath string, endpoints []string, nodename string) (*Pusher, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, &xerr.IOError{Op: "os.Hostname", Err: err}
	}

	p := &Pusher{
		hostname: hostname,
		nodename: nodename,
		logPath:  logPath,
		uuid:     newUUIDHex(),
	}

	for _, addr := range endpoints {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if err := zmqutil.PrepareIPCPath(addr); err != nil {
			p.closeSockets()
			return nil, err
		}

		sock := zmq4.NewPush(ctx, zmq4.WithTimeout(lingerDuration))
		if err := sock.Dial(addr); err != nil {
			p.closeSockets()
			return nil, &xerr.IOError{Op: "dial PUSH " + addr, Err: err}
		}
		p.sockets = append(p.sockets, sock)
	}

	if len(p.sockets) == 0 {
		return nil, &xerr.ConfigError{Field: "endpoints", Reason: "no PUSH endpoints configured"}
	}

	return p, nil
}

// NewFromEnv builds a Pusher from the environment variables described
// in the spec's external interfaces section: PYTHON_ZMQ_LOG_HANDLER
// (required, whitespace-separated endpoint list), ZMQ_LOG_NODE_NAME
// (optional), HOSTNAME (optional override of os.Hostname).
func NewFromEnv(ctx context.Context, logPath string) (*Pusher, error) {
	raw, ok := os.LookupEnv(EnvPushEndpoints)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, &xerr.ConfigError{Field: EnvPushEndpoints, Reason: "required environment variable not set"}
	}

	p, err := New(ctx, logPath, strings.Fields(raw), os.Getenv(EnvNodeName))
	if err != nil {
		return nil, err
	}
	if h := os.Getenv(EnvHostname); h != "" {
		p.hostname = h
	}
	return p, nil
}

// Push increments the sequence number, assembles and encodes the
// header for line, and sends it as an atomic two-frame message to
// every configured endpoint.
func (p *Pusher) Push(line string) error {
	seq := atomic.AddInt64(&p.sequence, 1)

	header := wire.Header{
		Hostname:  p.hostname,
		UUID:      p.uuid,
		Sequence:  seq,
		PID:       os.Getpid(),
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		LogPath:   p.logPath,
		Nodename:  p.nodename,
	}

	compressedHeader, compressedBody, err := wire.Encode(header, line)
	if err != nil {
		return err
	}

	msg := zmq4.NewMsgFrom(compressedHeader, compressedBody)

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sock := range p.sockets {
		if err := sock.SendMulti(msg); err != nil {
			return &xerr.IOError{Op: "PUSH send", Err: errors.WithStack(err)}
		}
	}
	return nil
}

// newForTest builds a Pusher around caller-supplied sockets, bypassing
// network dialing. Used by pusher_test.go.
func newForTest(hostname, nodename, logPath string, sockets ...pushSocket) *Pusher {
	return &Pusher{
		hostname: hostname,
		nodename: nodename,
		logPath:  logPath,
		uuid:     newUUIDHex(),
		sockets:  sockets,
	}
}

// Close shuts down every PUSH socket, destroying this instance's uuid
// and sequence.
func (p *Pusher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uuid = ""
	atomic.StoreInt64(&p.sequence, 0)
	return p.closeSocketsLocked()
}

func (p *Pusher) closeSockets() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.closeSocketsLocked()
}

func (p *Pusher) closeSocketsLocked() error {
	var firstErr error
	for _, sock := range p.sockets {
		if err := sock.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.sockets = nil
	return firstErr
}
