// Command stdin-pusher implements the stdin push proxy (C11): a drop-in
// substitute for a stdin-to-file logging shim that instead reads
// newline-delimited lines from stdin and pushes each one through a
// Pusher, built from the environment per the spec's external
// interfaces section.
package main

import (
	"bufio"
	"log"
	"os"

	"github.com/urfave/cli"

	"github.com/spideroak/old-log-inn/internal/pusher"
	"github.com/spideroak/old-log-inn/internal/signalutil"
)

func checkError(err error) {
	if err == nil {
		return
	}
	log.Printf("%+v\n", err)
	os.Exit(-1)
}

func main() {
	myApp := cli.NewApp()
	myApp.Name = "stdin-pusher"
	myApp.Usage = "push stdin log lines into the log-shipping pipeline"
	myApp.Version = "1.0.0"
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "log-path", Usage: "logical log path tagged on every pushed line"},
		cli.StringFlag{Name: "log", Usage: "file to append diagnostic output to, instead of stderr"},
	}

	myApp.Action = func(c *cli.Context) error {
		logPath := c.String("log-path")
		if diag := c.String("log"); diag != "" {
			f, err := os.OpenFile(diag, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			checkError(err)
			log.SetOutput(f)
		}

		handle := signalutil.WatchSignals()

		p, err := pusher.NewFromEnv(handle.Ctx, logPath)
		checkError(err)

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			if handle.Done() {
				break
			}
			if err := p.Push(scanner.Text()); err != nil {
				log.Printf("stdin-pusher: dropping line: %v", err)
			}
		}
		if err := scanner.Err(); err != nil {
			log.Printf("stdin-pusher: stdin read error: %v", err)
		}

		checkError(p.Close())
		log.Println("stdin-pusher: shut down cleanly")
		return nil
	}

	checkError(myApp.Run(os.Args))
}
