package main

import (
	"encoding/json"
	"os"
)

// Config mirrors the streamwriter.Config fields the command line and
// an optional JSON override file can set, plus the SUB address this
// binary consumes from.
type Config struct {
	SubAddress         string `json:"sub_address"`
	Prefix             string `json:"prefix"`
	Suffix             string `json:"suffix"`
	GranularitySeconds int64  `json:"granularity_seconds"`
	WorkDir            string `json:"work_dir"`
	CompleteDir        string `json:"complete_dir"`
	IdleCheckSeconds   int    `json:"idle_check_seconds"`
	Log                string `json:"log"`
}

func parseJSONConfig(config *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(config)
}
