// Command forwarder runs the push->pub forwarder (C3): a PULL socket
// for pushers, a PUB socket re-broadcasting to the subscription
// aggregator.
package main

import (
	"log"
	"os"

	"github.com/urfave/cli"

	"github.com/spideroak/old-log-inn/internal/forwarder"
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
	myApp.Name = "forwarder"
	myApp.Usage = "push->pub forwarder for the log-shipping pipeline"
	myApp.Version = "1.0.0"
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "pull-address", Usage: "address the PULL socket binds to"},
		cli.StringFlag{Name: "pub-address", Usage: "address the PUB socket binds to"},
		cli.StringFlag{Name: "topic", Value: "", Usage: "topic frame prepended to every re-published message"},
		cli.IntFlag{Name: "hwm", Value: forwarder.DefaultHWM, Usage: "high-water-mark on the PUB socket"},
		cli.StringFlag{Name: "c", Usage: "path to a JSON config file overriding the flags above"},
		cli.StringFlag{Name: "log", Usage: "file to append log output to, instead of stderr"},
	}

	myApp.Action = func(c *cli.Context) error {
		config := Config{
			PullAddress: c.String("pull-address"),
			PubAddress:  c.String("pub-address"),
			Topic:       c.String("topic"),
			HWM:         c.Int("hwm"),
			Log:         c.String("log"),
		}
		if path := c.String("c"); path != "" {
			checkError(parseJSONConfig(&config, path))
		}
		if config.Log != "" {
			f, err := os.OpenFile(config.Log, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			checkError(err)
			log.SetOutput(f)
		}

		handle := signalutil.WatchSignals()

		fwd, err := forwarder.New(handle.Ctx, forwarder.Config{
			PullAddress: config.PullAddress,
			PubAddress:  config.PubAddress,
			Topic:       config.Topic,
			HWM:         config.HWM,
		})
		checkError(err)

		log.Printf("forwarder: PULL %s -> PUB %s (topic %q)", config.PullAddress, config.PubAddress, config.Topic)

		err = fwd.Run(handle.Ctx)
		fwd.Close()
		checkError(err)

		log.Println("forwarder: shut down cleanly")
		return nil
	}

	checkError(myApp.Run(os.Args))
}
