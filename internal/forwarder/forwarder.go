// Package forwarder implements the push->pub forwarder (C3): one PULL
// socket accepting pushers, one PUB socket re-broadcasting to the
// subscription aggregator, with a topic frame prepended and an HWM
// bound on the PUB side. Header and body bytes pass through
// uninterpreted.
package forwarder

import (
	"context"
	"log"

	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"

	"github.com/spideroak/old-log-inn/internal/wire"
	"github.com/spideroak/old-log-inn/internal/xerr"
	"github.com/spideroak/old-log-inn/internal/zmqutil"
)

// DefaultHWM is the high-water-mark applied to the PUB socket when the
// caller does not override it.
const DefaultHWM = 20000

// Config configures a Forwarder.
type Config struct {
	PullAddress string
	PubAddress  string
	Topic       string
	HWM         int
}

// pubSocket is the subset of zmq4.Socket the forwarder uses to publish,
// narrowed so tests can substitute a fake.
type pubSocket interface {
	SendMulti(msg zmq4.Msg) error
	Close() error
}

// pullSocket is the subset of zmq4.Socket the forwarder uses to
// receive.
type pullSocket interface {
	Recv() (zmq4.Msg, error)
	Close() error
}

// Forwarder binds a PULL and a PUB socket and relays every two-frame
// PULL message as a three-frame (topic, header, body) PUB message.
type Forwarder struct {
	cfg  Config
	pull pullSocket
	pub  pubSocket
}

// New binds the PULL and PUB sockets described by cfg.
func New(ctx context.Context, cfg Config) (*Forwarder, error) {
	if cfg.PullAddress == "" || cfg.PubAddress == "" {
		return nil, &xerr.ConfigError{Field: "pull/pub address", Reason: "both addresses are required"}
	}
	if cfg.HWM <= 0 {
		cfg.HWM = DefaultHWM
	}

	for _, addr := range []string{cfg.PullAddress, cfg.PubAddress} {
		if err := zmqutil.PrepareIPCPath(addr); err != nil {
			return nil, err
		}
	}

	pub := zmq4.NewPub(ctx)
	if err := pub.Listen(cfg.PubAddress); err != nil {
		return nil, &xerr.IOError{Op: "bind PUB " + cfg.PubAddress, Err: err}
	}
	if err := pub.SetOption(zmq4.OptionHWM, cfg.HWM); err != nil {
		log.Printf("forwarder: PUB HWM not supported by this transport: %v", err)
	}

	pull := zmq4.NewPull(ctx)
	if err := pull.Listen(cfg.PullAddress); err != nil {
		pub.Close()
		return nil, &xerr.IOError{Op: "bind PULL " + cfg.PullAddress, Err: err}
	}

	return &Forwarder{cfg: cfg, pull: pull, pub: pub}, nil
}

// newForTest builds a Forwarder around caller-supplied sockets.
func newForTest(cfg Config, pull pullSocket, pub pubSocket) *Forwarder {
	return &Forwarder{cfg: cfg, pull: pull, pub: pub}
}

// Run receives messages from the PULL socket and republishes them on
// the PUB socket until ctx is canceled. It returns nil on a clean
// shutdown.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := f.pull.Recv()
		if err != nil {
			if zmqutil.IsInterrupted(err) {
				if ctx.Err() != nil {
					return nil
				}
				continue
			}
			return &xerr.IOError{Op: "PULL recv", Err: errors.WithStack(err)}
		}

		if err := f.forward(msg); err != nil {
			log.Printf("forwarder: dropping malformed message: %v", err)
			continue
		}
	}
}

// forward validates the two-frame shape of msg and republishes it with
// the topic frame prepended.
func (f *Forwarder) forward(msg zmq4.Msg) error {
	if len(msg.Frames) != 2 {
		return &wire.FrameError{Reason: "expected 2 frames on PULL socket"}
	}
	header, body := msg.Frames[0], msg.Frames[1]

	out := zmq4.NewMsgFrom([]byte(f.cfg.Topic), header, body)
	if err := f.pub.SendMulti(out); err != nil {
		return &xerr.IOError{Op: "PUB send", Err: errors.WithStack(err)}
	}
	return nil
}

// Close releases both sockets.
func (f *Forwarder) Close() error {
	errPull := f.pull.Close()
	errPub := f.pub.Close()
	if errPull != nil {
		return errPull
	}
	return errPub
}
