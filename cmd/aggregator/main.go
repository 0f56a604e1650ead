// Command aggregator runs the subscription aggregator (C4): it
// subscribes to every PUB endpoint listed in a sub-list file and
// re-publishes everything it receives on a single PUB socket.
package main

import (
	"log"
	"os"

	"github.com/urfave/cli"

	"github.com/spideroak/old-log-inn/internal/aggregator"
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
	myApp.Name = "aggregator"
	myApp.Usage = "subscription aggregator for the log-shipping pipeline"
	myApp.Version = "1.0.0"
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "sub-list", Usage: "path to a file of PUB addresses to subscribe to, one per line"},
		cli.StringFlag{Name: "pub-address", Usage: "address the output PUB socket binds to"},
		cli.IntFlag{Name: "hwm", Value: aggregator.DefaultHWM, Usage: "high-water-mark on the output PUB socket"},
		cli.StringFlag{Name: "c", Usage: "path to a JSON config file overriding the flags above"},
		cli.StringFlag{Name: "log", Usage: "file to append log output to, instead of stderr"},
	}

	myApp.Action = func(c *cli.Context) error {
		config := Config{
			SubListPath: c.String("sub-list"),
			PubAddress:  c.String("pub-address"),
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

		subAddresses, err := aggregator.LoadSubList(config.SubListPath)
		checkError(err)

		handle := signalutil.WatchSignals()

		agg, err := aggregator.New(handle.Ctx, aggregator.Config{
			SubAddresses: subAddresses,
			PubAddress:   config.PubAddress,
			HWM:          config.HWM,
		})
		checkError(err)

		log.Printf("aggregator: %d sub address(es) -> PUB %s", len(subAddresses), config.PubAddress)

		err = agg.Run(handle.Ctx)
		agg.Close()
		checkError(err)

		log.Println("aggregator: shut down cleanly")
		return nil
	}

	checkError(myApp.Run(os.Args))
}
