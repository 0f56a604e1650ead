// Command retriever runs the archive retriever and dedup pass (C7): it
// enumerates archives in a local collection (an FSObjectStore backed
// directory, the single-node deployment case), merges and dedups each
// time bucket, and writes surviving bodies to stdout, one per line.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"regexp"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/spideroak/old-log-inn/internal/filter"
	"github.com/spideroak/old-log-inn/internal/retriever"
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
	myApp.Name = "retriever"
	myApp.Usage = "archive retriever and dedup pass for the log-shipping pipeline"
	myApp.Version = "1.0.0"
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "archive-dir", Usage: "directory holding complete archive files"},
		cli.StringFlag{Name: "prefix", Value: "logs.", Usage: "archive filename prefix"},
		cli.StringFlag{Name: "suffix", Value: ".gz", Usage: "archive filename suffix"},
		cli.StringFlag{Name: "low-ts", Usage: "inclusive ts14 lower bound, empty means unbounded"},
		cli.StringFlag{Name: "high-ts", Usage: "inclusive ts14 upper bound, empty means unbounded"},
		cli.StringFlag{Name: "work-dir", Usage: "scratch directory for per-bucket downloads"},
		cli.StringFlag{Name: "hostname-regexp", Usage: "only emit records whose hostname matches this regexp"},
		cli.StringFlag{Name: "nodename-regexp", Usage: "only emit records whose nodename matches this regexp"},
		cli.StringFlag{Name: "log-path-regexp", Usage: "only emit records whose log path matches this regexp"},
		cli.StringFlag{Name: "body-regexp", Usage: "only emit records whose body matches this regexp"},
		cli.StringFlag{Name: "c", Usage: "path to a JSON config file overriding the flags above"},
		cli.StringFlag{Name: "log", Usage: "file to append log output to, instead of stderr"},
	}

	myApp.Action = func(c *cli.Context) error {
		config := Config{
			ArchiveDir:     c.String("archive-dir"),
			Prefix:         c.String("prefix"),
			Suffix:         c.String("suffix"),
			LowTS:          c.String("low-ts"),
			HighTS:         c.String("high-ts"),
			WorkDir:        c.String("work-dir"),
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
		for _, bound := range []struct{ name, value string }{{"low-ts", config.LowTS}, {"high-ts", config.HighTS}} {
			if bound.value != "" && len(bound.value) != 14 {
				color.Red("WARNING: --%s %q is not a 14-digit ts14 bound; it is compared lexicographically against 14-digit bucket names", bound.name, bound.value)
			}
		}

		store := &retriever.FSObjectStore{Dir: config.ArchiveDir}

		r, err := retriever.New(store, retriever.Config{
			Prefix:  config.Prefix,
			Suffix:  config.Suffix,
			LowTS:   config.LowTS,
			HighTS:  config.HighTS,
			WorkDir: config.WorkDir,
			Filter: filter.Filter{
				HostnameRegexp: compileOptional("hostname-regexp", config.HostnameRegexp),
				NodenameRegexp: compileOptional("nodename-regexp", config.NodenameRegexp),
				LogPathRegexp:  compileOptional("log-path-regexp", config.LogPathRegexp),
				BodyRegexp:     compileOptional("body-regexp", config.BodyRegexp),
			},
		})
		checkError(err)

		handle := signalutil.WatchSignals()

		log.Printf("retriever: scanning %s (prefix %q, suffix %q)", config.ArchiveDir, config.Prefix, config.Suffix)

		out := bufio.NewWriter(os.Stdout)
		count := 0
		err = r.Run(handle.Ctx, func(rec retriever.Record) error {
			count++
			fmt.Fprintln(out, rec.Body)
			return nil
		})
		out.Flush()
		checkError(err)

		log.Printf("retriever: emitted %d record(s)", count)
		return nil
	}

	checkError(myApp.Run(os.Args))
}
