// Package aggregator implements the subscription aggregator (C4): it
// subscribes to every PUB endpoint listed in a sub-list file and
// re-publishes whatever it receives, unchanged, on a single PUB socket
// bounded by an HWM. Per-input order is preserved; order across inputs
// is arbitrary but fair.
package aggregator

import (
	"bufio"
	"context"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"

	"github.com/spideroak/old-log-inn/internal/wire"
	"github.com/spideroak/old-log-inn/internal/xerr"
	"github.com/spideroak/old-log-inn/internal/zmqutil"
)

// DefaultHWM is applied to the output PUB socket when Config.HWM is 0.
const DefaultHWM = 20000

// Config configures an Aggregator.
type Config struct {
	SubAddresses []string
	PubAddress   string
	HWM          int
}

// LoadSubList reads an ASCII file of PUB endpoints, one per line,
// skipping blank lines.
func LoadSubList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &xerr.IOError{Op: "open sub-list " + path, Err: err}
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, &xerr.IOError{Op: "read sub-list " + path, Err: err}
	}
	return out, nil
}

type subSocket interface {
	Recv() (zmq4.Msg, error)
	Close() error
}

type pubSocket interface {
	SendMulti(msg zmq4.Msg) error
	Close() error
}

// Aggregator fans SUB sockets in, republishing each message on one PUB
// socket.
type Aggregator struct {
	subs []subSocket
	pub  pubSocket
}

// New subscribes to every address in cfg.SubAddresses with the empty
// prefix (accept all) and binds cfg.PubAddress.
func New(ctx context.Context, cfg Config) (*Aggregator, error) {
	if len(cfg.SubAddresses) == 0 {
		return nil, &xerr.ConfigError{Field: "sub addresses", Reason: "at least one SUB endpoint is required"}
	}
	if cfg.PubAddress == "" {
		return nil, &xerr.ConfigError{Field: "pub address", Reason: "required"}
	}
	if cfg.HWM <= 0 {
		cfg.HWM = DefaultHWM
	}

	if err := zmqutil.PrepareIPCPath(cfg.PubAddress); err != nil {
		return nil, err
	}

	pub := zmq4.NewPub(ctx)
	if err := pub.Listen(cfg.PubAddress); err != nil {
		return nil, &xerr.IOError{Op: "bind PUB " + cfg.PubAddress, Err: err}
	}
	if err := pub.SetOption(zmq4.OptionHWM, cfg.HWM); err != nil {
		log.Printf("aggregator: PUB HWM not supported by this transport: %v", err)
	}

	agg := &Aggregator{pub: pub}
	for _, addr := range cfg.SubAddresses {
		if err := zmqutil.PrepareIPCPath(addr); err != nil {
			agg.Close()
			return nil, err
		}
		sub := zmq4.NewSub(ctx)
		if err := sub.Dial(addr); err != nil {
			agg.Close()
			return nil, &xerr.IOError{Op: "dial SUB " + addr, Err: err}
		}
		if err := sub.SetOption(zmq4.OptionSubscribe, ""); err != nil {
			agg.Close()
			return nil, &xerr.IOError{Op: "subscribe " + addr, Err: err}
		}
		agg.subs = append(agg.subs, sub)
	}

	return agg, nil
}

// newForTest builds an Aggregator around caller-supplied sockets.
func newForTest(subs []subSocket, pub pubSocket) *Aggregator {
	return &Aggregator{subs: subs, pub: pub}
}

// Run reads from every SUB socket concurrently (one goroutine per
// socket, preserving per-input FIFO order) and republishes each
// three-frame message unchanged on the PUB socket until ctx is
// canceled.
func (a *Aggregator) Run(ctx context.Context) error {
	type received struct {
		msg zmq4.Msg
		err error
	}
	out := make(chan received)

	var wg sync.WaitGroup
	for _, s := range a.subs {
		wg.Add(1)
		go func(s subSocket) {
			defer wg.Done()
			for {
				msg, err := s.Recv()
				select {
				case out <- received{msg, err}:
				case <-ctx.Done():
					return
				}
				if err != nil && !zmqutil.IsInterrupted(err) {
					return
				}
				if ctx.Err() != nil {
					return
				}
			}
		}(s)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case r, ok := <-out:
			if !ok {
				return nil
			}
			if r.err != nil {
				if zmqutil.IsInterrupted(r.err) {
					continue
				}
				return &xerr.IOError{Op: "SUB recv", Err: errors.WithStack(r.err)}
			}
			if err := a.republish(r.msg); err != nil {
				log.Printf("aggregator: dropping malformed message: %v", err)
			}
		}
	}
}

func (a *Aggregator) republish(msg zmq4.Msg) error {
	if len(msg.Frames) != 3 {
		return &wire.FrameError{Reason: "expected 3 frames (topic, header, body) on SUB socket"}
	}
	if err := a.pub.SendMulti(msg); err != nil {
		return &xerr.IOError{Op: "PUB send", Err: errors.WithStack(err)}
	}
	return nil
}

// Close releases every socket.
func (a *Aggregator) Close() error {
	var firstErr error
	for _, s := range a.subs {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.pub != nil {
		if err := a.pub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
