package pusher

import (
	"os"
	"sync"
	"testing"

	"github.com/go-zeromq/zmq4"

	"github.com/spideroak/old-log-inn/internal/wire"
)

type fakeSocket struct {
	mu      sync.Mutex
	sent    []zmq4.Msg
	sendErr error
	closed  bool
}

func (f *fakeSocket) SendMulti(msg zmq4.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSocket) Close() error {
	f.closed = true
	return nil
}

func TestPushSendsToEveryEndpoint(t *testing.T) {
	a := &fakeSocket{}
	b := &fakeSocket{}
	p := newForTest("host1", "", "app/access.log", a, b)

	if err := p.Push("hello world"); err != nil {
		t.Fatalf("Push: %v", err)
	}

	for name, sock := range map[string]*fakeSocket{"a": a, "b": b} {
		if len(sock.sent) != 1 {
			t.Fatalf("socket %s got %d messages, want 1", name, len(sock.sent))
		}
		msg := sock.sent[0]
		if len(msg.Frames) != 2 {
			t.Fatalf("socket %s: expected 2 frames, got %d", name, len(msg.Frames))
		}
		header, body, err := wire.Decode(msg.Frames[0], msg.Frames[1])
		if err != nil {
			t.Fatalf("socket %s: Decode: %v", name, err)
		}
		if body != "hello world" {
			t.Fatalf("socket %s: body = %q", name, body)
		}
		if header.Hostname != "host1" || header.LogPath != "app/access.log" {
			t.Fatalf("socket %s: unexpected header %+v", name, header)
		}
		if header.Sequence != 1 {
			t.Fatalf("socket %s: sequence = %d, want 1", name, header.Sequence)
		}
		if header.PID != os.Getpid() {
			t.Fatalf("socket %s: pid = %d, want %d", name, header.PID, os.Getpid())
		}
	}
}

func TestPushSequenceIsMonotonic(t *testing.T) {
	sock := &fakeSocket{}
	p := newForTest("host1", "", "app.log", sock)

	for i := 0; i < 5; i++ {
		if err := p.Push("line"); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	var prev int64
	for i, msg := range sock.sent {
		header, _, err := wire.Decode(msg.Frames[0], msg.Frames[1])
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if header.Sequence <= prev {
			t.Fatalf("message %d: sequence %d is not greater than previous %d", i, header.Sequence, prev)
		}
		prev = header.Sequence
	}
}

func TestPushIncludesNodenameWhenSet(t *testing.T) {
	sock := &fakeSocket{}
	p := newForTest("host1", "node-a", "app.log", sock)

	if err := p.Push("line"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	header, _, err := wire.Decode(sock.sent[0].Frames[0], sock.sent[0].Frames[1])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if header.Nodename != "node-a" {
		t.Fatalf("nodename = %q, want node-a", header.Nodename)
	}
}

func TestNewFromEnvRequiresEndpoints(t *testing.T) {
	t.Setenv(EnvPushEndpoints, "")
	_, err := NewFromEnv(nil, "app.log")
	if err == nil {
		t.Fatal("expected ConfigError when endpoints env var is unset")
	}
}

func TestCloseClosesAllSockets(t *testing.T) {
	a := &fakeSocket{}
	b := &fakeSocket{}
	p := newForTest("host1", "", "app.log", a, b)

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatal("expected both sockets to be closed")
	}
}
