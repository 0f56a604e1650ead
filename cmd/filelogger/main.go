// Command filelogger runs the file logger (C6): it subscribes to one
// PUB endpoint, applies up to four regex predicates, and appends
// passing events to rotating plaintext files keyed by log path.
package main

import (
	"log"
	"os"
	"regexp"

	"github.com/urfave/cli"

	"github.com/spideroak/old-log-inn/internal/filelogger"
	"github.com/spideroak/old-log-inn/internal/filter"
	"github.com/spideroak/old-log-inn/internal/signalutil"
	"github.com/spideroak/old-log-inn/internal/xerr"
)

func checkError(err error) {
	if err == nil {
		return
	}
	log.Printf("%+v\n", err)
	os.Exit(-1)
}

// compileOptional compiles pattern if non-empty, wrapping any error in
// a ConfigError naming field.
func compileOptional(field, pattern string) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		checkError(&xerr.ConfigError{Field: field, Reason: err.Error()})
	}
	return re
}

func main() {
	myApp := cli.NewApp()
	myApp.Name = "filelogger"
	myApp.Usage = "file logger for the log-shipping pipeline"
	myApp.Version = "1.0.0"
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "sub-address", Usage: "PUB address to subscribe to"},
		cli.StringFlag{Name: "output-dir", Usage: "directory passing events are written into"},
		cli.BoolFlag{Name: "prefix-hostname", Usage: "prefix each output filename with its event's hostname"},
		cli.Int64Flag{Name: "max-bytes", Value: 10 * 1024 * 1024, Usage: "rotate an output file once it exceeds this many bytes"},
		cli.IntFlag{Name: "backup-count", Value: 5, Usage: "number of rotated backups to keep per output file"},
		cli.IntFlag{Name: "max-open-files", Value: 0, Usage: "LRU-bound the number of simultaneously open output files; 0 means unbounded"},
		cli.StringFlag{Name: "hostname-regexp", Usage: "only accept events whose hostname matches this regexp"},
		cli.StringFlag{Name: "nodename-regexp", Usage: "only accept events whose nodename matches this regexp"},
		cli.StringFlag{Name: "log-path-regexp", Usage: "only accept events whose log path matches this regexp"},
		cli.StringFlag{Name: "body-regexp", Usage: "only accept events whose body matches this regexp"},
		cli.StringFlag{Name: "c", Usage: "path to a JSON config file overriding the flags above"},
		cli.StringFlag{Name: "log", Usage: "file to append log output to, instead of stderr"},
	}

	myApp.Action = func(c *cli.Context) error {
		config := Config{
			SubAddress:     c.String("sub-address"),
			OutputDir:      c.String("output-dir"),
			PrefixHostname: c.Bool("prefix-hostname"),
			MaxBytes:       c.Int64("max-bytes"),
			BackupCount:    c.Int("backup-count"),
			MaxOpenFiles:   c.Int("max-open-files"),
			HostnameRegexp: c.String("hostname-regexp"),
			NodenameRegexp: c.String("nodename-regexp"),
			LogPathRegexp:  c.String("log-path-regexp"),
			BodyRegexp:     c.String("body-regexp"),
			Log:            c.String("log"),
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

		sink, err := filelogger.New(handle.Ctx, filelogger.Config{
			SubAddress:     config.SubAddress,
			OutputDir:      config.OutputDir,
			PrefixHostname: config.PrefixHostname,
			MaxBytes:       config.MaxBytes,
			BackupCount:    config.BackupCount,
			MaxOpenFiles:   config.MaxOpenFiles,
			Filter: filter.Filter{
				HostnameRegexp: compileOptional("hostname-regexp", config.HostnameRegexp),
				NodenameRegexp: compileOptional("nodename-regexp", config.NodenameRegexp),
				LogPathRegexp:  compileOptional("log-path-regexp", config.LogPathRegexp),
				BodyRegexp:     compileOptional("body-regexp", config.BodyRegexp),
			},
		})
		checkError(err)

		log.Printf("filelogger: SUB %s -> %s", config.SubAddress, config.OutputDir)

		err = sink.Run(handle.Ctx)
		sink.Close()
		checkError(err)

		log.Println("filelogger: shut down cleanly")
		return nil
	}

	checkError(myApp.Run(os.Args))
}
