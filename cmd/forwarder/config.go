package main

import (
	"encoding/json"
	"os"
)

// Config mirrors the forwarder.Config fields the command line and an
// optional JSON override file can set.
type Config struct {
	PullAddress string `json:"pull_address"`
	PubAddress  string `json:"pub_address"`
	Topic       string `json:"topic"`
	HWM         int    `json:"hwm"`
	Log         string `json:"log"`
}

// parseJSONConfig decodes the file at path into config, overwriting
// only the fields present in the file.
func parseJSONConfig(config *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(config)
}
