package main

import (
	"encoding/json"
	"os"
)

// Config mirrors the retriever.Config fields the command line and an
// optional JSON override file can set.
type Config struct {
	ArchiveDir     string `json:"archive_dir"`
	Prefix         string `json:"prefix"`
	Suffix         string `json:"suffix"`
	LowTS          string `json:"low_ts"`
	HighTS         string `json:"high_ts"`
	WorkDir        string `json:"work_dir"`
	HostnameRegexp string `json:"hostname_regexp"`
	NodenameRegexp string `json:"nodename_regexp"`
	LogPathRegexp  string `json:"log_path_regexp"`
	BodyRegexp     string `json:"body_regexp"`
	Log            string `json:"log"`
}

func parseJSONConfig(config *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(config)
}
