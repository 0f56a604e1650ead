package main

import (
	"encoding/json"
	"os"
)

// Config mirrors the filelogger.Config fields the command line and an
// optional JSON override file can set.
type Config struct {
	SubAddress     string `json:"sub_address"`
	OutputDir      string `json:"output_dir"`
	PrefixHostname bool   `json:"prefix_hostname"`
	MaxBytes       int64  `json:"max_bytes"`
	BackupCount    int    `json:"backup_count"`
	MaxOpenFiles   int    `json:"max_open_files"`
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
