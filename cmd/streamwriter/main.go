// Command streamwriter runs the log stream writer (C5): it subscribes
// to the subscription aggregator's PUB socket and appends every
// (header, body) pair it receives to a time-bucketed, gzip-compressed
// archive file, still in whatever compressed form the wire carried it.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/urfave/cli"

	"github.com/spideroak/old-log-inn/internal/signalutil"
	"github.com/spideroak/old-log-inn/internal/streamwriter"
	"github.com/spideroak/old-log-inn/internal/wire"
	"github.com/spideroak/old-log-inn/internal/xerr"
	"github.com/spideroak/old-log-inn/internal/zmqutil"
)

func checkError(err error) {
	if err == nil {
		return
	}
	log.Printf("%+v\n", err)
	os.Exit(-1)
}

// recvResult carries one SUB receive back to the loop that owns the
// Writer, keeping every Writer call on a single goroutine even though
// the socket read happens on another.
type recvResult struct {
	msg zmq4.Msg
	err error
}

func main() {
	myApp := cli.NewApp()
	myApp.Name = "streamwriter"
	myApp.Usage = "log stream writer for the log-shipping pipeline"
	myApp.Version = "1.0.0"
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "sub-address", Usage: "aggregator PUB address to subscribe to"},
		cli.StringFlag{Name: "prefix", Value: "logs.", Usage: "archive filename prefix"},
		cli.StringFlag{Name: "suffix", Value: ".gz", Usage: "archive filename suffix"},
		cli.IntFlag{Name: "granularity", Value: 300, Usage: "bucket granularity in seconds"},
		cli.StringFlag{Name: "work-dir", Usage: "directory holding archives still being written"},
		cli.StringFlag{Name: "complete-dir", Usage: "directory archives are renamed into once closed"},
		cli.IntFlag{Name: "idle-check", Value: 30, Usage: "seconds between idle-rollover checks"},
		cli.StringFlag{Name: "c", Usage: "path to a JSON config file overriding the flags above"},
		cli.StringFlag{Name: "log", Usage: "file to append log output to, instead of stderr"},
	}

	myApp.Action = func(c *cli.Context) error {
		config := Config{
			SubAddress:         c.String("sub-address"),
			Prefix:             c.String("prefix"),
			Suffix:             c.String("suffix"),
			GranularitySeconds: int64(c.Int("granularity")),
			WorkDir:            c.String("work-dir"),
			CompleteDir:        c.String("complete-dir"),
			IdleCheckSeconds:   c.Int("idle-check"),
			Log:                c.String("log"),
		}
		if path := c.String("c"); path != "" {
			checkError(parseJSONConfig(&config, path))
		}
		if config.Log != "" {
			f, err := os.OpenFile(config.Log, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			checkError(err)
			log.SetOutput(f)
		}
		if config.SubAddress == "" {
			checkError(&xerr.ConfigError{Field: "sub-address", Reason: "required"})
		}
		if config.IdleCheckSeconds <= 0 {
			config.IdleCheckSeconds = 30
		}

		writer, err := streamwriter.New(streamwriter.Config{
			Prefix:             config.Prefix,
			Suffix:             config.Suffix,
			GranularitySeconds: config.GranularitySeconds,
			WorkDir:            config.WorkDir,
			CompleteDir:        config.CompleteDir,
		})
		checkError(err)

		handle := signalutil.WatchSignals()

		checkError(zmqutil.PrepareIPCPath(config.SubAddress))
		sub := zmq4.NewSub(handle.Ctx)
		checkError(wrapDial(sub, config.SubAddress))
		if err := sub.SetOption(zmq4.OptionSubscribe, ""); err != nil {
			checkError(&xerr.IOError{Op: "subscribe " + config.SubAddress, Err: err})
		}

		log.Printf("streamwriter: SUB %s -> %s (granularity %ds)", config.SubAddress, config.WorkDir, config.GranularitySeconds)

		err = run(handle.Ctx, sub, writer, time.Duration(config.IdleCheckSeconds)*time.Second)
		sub.Close()
		writer.Close()
		checkError(err)

		log.Println("streamwriter: shut down cleanly")
		return nil
	}

	checkError(myApp.Run(os.Args))
}

func wrapDial(sub zmq4.Socket, addr string) error {
	if err := sub.Dial(addr); err != nil {
		return &xerr.IOError{Op: "dial SUB " + addr, Err: err}
	}
	return nil
}

// run consumes recv results and ticks on a single goroutine so every
// Writer call is serialized, as the package requires.
func run(ctx context.Context, sub zmq4.Socket, writer *streamwriter.Writer, idleCheck time.Duration) error {
	results := make(chan recvResult, 1)
	go func() {
		for {
			msg, err := sub.Recv()
			select {
			case results <- recvResult{msg: msg, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil && !zmqutil.IsInterrupted(err) {
				return
			}
		}
	}()

	ticker := time.NewTicker(idleCheck)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := writer.CheckForRollover(); err != nil {
				return err
			}
		case r := <-results:
			if r.err != nil {
				if zmqutil.IsInterrupted(r.err) {
					continue
				}
				if ctx.Err() != nil {
					return nil
				}
				return &xerr.IOError{Op: "SUB recv", Err: r.err}
			}
			if err := handle(r.msg, writer); err != nil {
				log.Printf("streamwriter: dropping message: %v", err)
			}
		}
	}
}

func handle(msg zmq4.Msg, writer *streamwriter.Writer) error {
	if len(msg.Frames) != 3 {
		return &wire.FrameError{Reason: "expected 3 frames (topic, header, body) on SUB socket"}
	}
	return writer.Write(msg.Frames[1], msg.Frames[2])
}
