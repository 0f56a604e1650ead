package forwarder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/spideroak/old-log-inn/internal/wire"
)

type fakePullSocket struct {
	msgs   []zmq4.Msg
	idx    int
	closed bool
	ctx    context.Context // optional; when set, Recv unblocks on ctx.Done()
}

func (f *fakePullSocket) Recv() (zmq4.Msg, error) {
	if f.idx >= len(f.msgs) {
		if f.ctx != nil {
			<-f.ctx.Done()
			return zmq4.Msg{}, errors.New("interrupted system call")
		}
		<-make(chan struct{}) // block forever; caller cancels ctx
	}
	m := f.msgs[f.idx]
	f.idx++
	return m, nil
}

func (f *fakePullSocket) Close() error {
	f.closed = true
	return nil
}

type fakePubSocket struct {
	sent   []zmq4.Msg
	closed bool
	notify chan struct{}
}

func (f *fakePubSocket) SendMulti(msg zmq4.Msg) error {
	f.sent = append(f.sent, msg)
	if f.notify != nil {
		f.notify <- struct{}{}
	}
	return nil
}

func (f *fakePubSocket) Close() error {
	f.closed = true
	return nil
}

// TestForwarderPassthrough verifies scenario S4: given bytes H, B sent
// via PULL, the PUB output is exactly (topic, H, B) with no mutation.
func TestForwarderPassthrough(t *testing.T) {
	h := []byte("compressed-header-bytes")
	b := []byte("compressed-body-bytes")

	pull := &fakePullSocket{msgs: []zmq4.Msg{zmq4.NewMsgFrom(h, b)}}
	pub := &fakePubSocket{}

	fwd := newForTest(Config{Topic: "node1"}, pull, pub)

	if err := fwd.forward(pull.msgs[0]); err != nil {
		t.Fatalf("forward: %v", err)
	}

	if len(pub.sent) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(pub.sent))
	}
	got := pub.sent[0].Frames
	if len(got) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(got))
	}
	if string(got[0]) != "node1" {
		t.Fatalf("topic frame = %q, want node1", got[0])
	}
	if string(got[1]) != string(h) {
		t.Fatalf("header frame mutated: got %q want %q", got[1], h)
	}
	if string(got[2]) != string(b) {
		t.Fatalf("body frame mutated: got %q want %q", got[2], b)
	}
}

func TestForwarderRejectsWrongFrameCount(t *testing.T) {
	pull := &fakePullSocket{}
	pub := &fakePubSocket{}
	fwd := newForTest(Config{Topic: "n"}, pull, pub)

	err := fwd.forward(zmq4.NewMsgFrom([]byte("only one frame")))
	if err == nil {
		t.Fatal("expected FrameError for wrong frame count")
	}
	if len(pub.sent) != 0 {
		t.Fatal("malformed message should not be published")
	}
}

func TestForwarderRunStopsOnCancel(t *testing.T) {
	pull := &fakePullSocket{msgs: []zmq4.Msg{
		zmq4.NewMsgFrom([]byte("h1"), []byte("b1")),
		zmq4.NewMsgFrom([]byte("h2"), []byte("b2")),
	}}
	pub := &fakePubSocket{notify: make(chan struct{}, 2)}
	fwd := newForTest(Config{Topic: "n"}, pull, pub)

	ctx, cancel := context.WithCancel(context.Background())
	pull.ctx = ctx
	done := make(chan error, 1)
	go func() { done <- fwd.Run(ctx) }()

	// wait for both buffered messages to be forwarded, then cancel.
	timeout := time.After(2 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case <-pub.notify:
		case <-timeout:
			t.Fatal("timed out waiting for forwarded messages")
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run returned error after cancel: %v", err)
	}
}

// TestPushToForwardHop exercises one full PUSH-to-PUB hop at the wire
// level: a header and body are encoded exactly as a pusher would
// encode them, carried through the forwarder's two-frame-in,
// three-frame-out relay, and decoded back out the other side,
// confirming log_path, sequence, and body survive the hop unchanged.
func TestPushToForwardHop(t *testing.T) {
	header := wire.Header{
		Hostname:  "host1",
		Nodename:  "node1",
		UUID:      "11111111-1111-1111-1111-111111111111",
		Sequence:  42,
		PID:       1234,
		Timestamp: 1700000000.5,
		LogPath:   "/var/log/app/current",
	}
	compressedHeader, compressedBody, err := wire.Encode(header, "hello from the pusher")
	if err != nil {
		t.Fatalf("wire.Encode: %v", err)
	}

	pull := &fakePullSocket{msgs: []zmq4.Msg{zmq4.NewMsgFrom(compressedHeader, compressedBody)}}
	pub := &fakePubSocket{}
	fwd := newForTest(Config{Topic: "node1"}, pull, pub)

	if err := fwd.forward(pull.msgs[0]); err != nil {
		t.Fatalf("forward: %v", err)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(pub.sent))
	}

	frames := pub.sent[0].Frames
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	gotHeader, gotBody, err := wire.Decode(frames[1], frames[2])
	if err != nil {
		t.Fatalf("wire.Decode: %v", err)
	}
	if gotHeader.LogPath != header.LogPath {
		t.Fatalf("log_path = %q, want %q", gotHeader.LogPath, header.LogPath)
	}
	if gotHeader.Sequence != header.Sequence {
		t.Fatalf("sequence = %d, want %d", gotHeader.Sequence, header.Sequence)
	}
	if gotBody != "hello from the pusher" {
		t.Fatalf("body = %q, want %q", gotBody, "hello from the pusher")
	}
}
