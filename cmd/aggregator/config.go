package main

import (
	"encoding/json"
	"os"
)

// Config mirrors the aggregator.Config fields the command line and an
// optional JSON override file can set.
type Config struct {
	SubListPath string `json:"sub_list_path"`
	PubAddress  string `json:"pub_address"`
	HWM         int    `json:"hwm"`
	Log         string `json:"log"`
}

func parseJSONConfig(config *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(config)
}
