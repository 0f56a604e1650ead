// Command supervisor runs the supervisor (C8): it loads the pipeline's
// JSON configuration (C9), starts one OS child process per configured
// component — forwarders and file loggers per node, plus a single
// aggregator and stream writer — and watches them until shutdown.
package main

import (
	"log"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/spideroak/old-log-inn/internal/signalutil"
	"github.com/spideroak/old-log-inn/internal/supervisor"
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
	myApp.Name = "supervisor"
	myApp.Usage = "process supervisor for the log-shipping pipeline"
	myApp.Version = "1.0.0"
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Usage: "path to the pipeline's JSON configuration document"},
		cli.StringFlag{Name: "bin-dir", Value: "", Usage: "directory containing the forwarder/aggregator/streamwriter/filelogger binaries; empty means resolve via PATH"},
		cli.IntFlag{Name: "duration", Value: 0, Usage: "seconds to run before stopping all children; 0 means run until signaled"},
		cli.StringFlag{Name: "log", Usage: "file to append log output to, instead of stderr"},
	}

	myApp.Action = func(c *cli.Context) error {
		if logPath := c.String("log"); logPath != "" {
			f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			checkError(err)
			log.SetOutput(f)
		}

		cfg, err := supervisor.LoadConfig(c.String("config"))
		checkError(err)

		binDir := c.String("bin-dir")
		program := func(name string) string {
			if binDir == "" {
				return name
			}
			return binDir + string(os.PathSeparator) + name
		}

		s := supervisor.New()

		// Forwarders bind first: the aggregator connects to them, and
		// file loggers/stream writer connect to the aggregator, so
		// every bind-side component must exist before its connectors
		// start.
		for _, name := range sortedNodeNames(cfg.Nodes) {
			node := cfg.Nodes[name]
			args := []string{
				"--pull-address", node.PullAddress,
				"--pub-address", node.PubAddress,
				"--topic", firstNonEmpty(node.Topic, name),
				"--hwm", strconv.Itoa(firstPositive(node.HWM, 20000)),
			}
			_, err := s.Spawn(name, program("forwarder"), args...)
			checkError(err)
			log.Printf("supervisor: spawned forwarder for node %s", name)
		}

		_, err = s.Spawn("global", program("aggregator"),
			"--sub-list", cfg.Global.SubListPath,
			"--pub-address", cfg.Global.AggregatorPub,
			"--hwm", strconv.Itoa(firstPositive(cfg.Global.AggregatorHWM, 20000)),
		)
		checkError(err)
		log.Println("supervisor: spawned aggregator")

		_, err = s.Spawn("global", program("streamwriter"),
			"--sub-address", cfg.Global.AggregatorPub,
			"--prefix", cfg.Global.ArchivePrefix,
			"--suffix", cfg.Global.ArchiveSuffix,
			"--granularity", strconv.FormatInt(cfg.Global.GranularitySeconds, 10),
			"--work-dir", cfg.Global.WorkDir,
			"--complete-dir", cfg.Global.CompleteDir,
		)
		checkError(err)
		log.Println("supervisor: spawned streamwriter")

		for _, name := range sortedNodeNames(cfg.Nodes) {
			node := cfg.Nodes[name]
			if node.FileLogger == nil {
				continue
			}
			fl := node.FileLogger
			args := []string{
				"--sub-address", cfg.Global.AggregatorPub,
				"--output-dir", fl.OutputDir,
				"--max-bytes", strconv.FormatInt(fl.MaxBytes, 10),
				"--backup-count", strconv.Itoa(fl.BackupCount),
			}
			if fl.MaxOpenFiles > 0 {
				args = append(args, "--max-open-files", strconv.Itoa(fl.MaxOpenFiles))
			}
			if fl.PrefixHostname {
				args = append(args, "--prefix-hostname")
			}
			if fl.HostnameRegexp != "" {
				args = append(args, "--hostname-regexp", fl.HostnameRegexp)
			}
			if fl.NodenameRegexp != "" {
				args = append(args, "--nodename-regexp", fl.NodenameRegexp)
			}
			if fl.LogPathRegexp != "" {
				args = append(args, "--log-path-regexp", fl.LogPathRegexp)
			}
			if fl.BodyRegexp != "" {
				args = append(args, "--body-regexp", fl.BodyRegexp)
			}
			_, err := s.Spawn(name, program("filelogger"), args...)
			checkError(err)
			log.Printf("supervisor: spawned file logger for node %s", name)
		}

		handle := signalutil.WatchSignals()

		duration := time.Duration(c.Int("duration")) * time.Second
		codes := s.Run(handle.Ctx, duration, nil)

		exitCode := 0
		for key, code := range codes {
			if code != 0 {
				color.Red("supervisor: %s exited %d", key, code)
				exitCode = 1
			}
		}
		log.Println("supervisor: all children stopped")
		if exitCode != 0 {
			os.Exit(exitCode)
		}
		return nil
	}

	checkError(myApp.Run(os.Args))
}

func sortedNodeNames(nodes map[string]supervisor.NodeConfig) []string {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstPositive(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
