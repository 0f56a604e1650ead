// Package supervisor implements the config loader (C9) and the
// supervisor (C8): parsing the pipeline's JSON configuration into
// typed structs, then starting and watching one OS child process per
// configured component.
package supervisor

import (
	"encoding/json"
	"os"

	"github.com/spideroak/old-log-inn/internal/xerr"
)

// FileLoggerConfig configures one node's optional file logger.
type FileLoggerConfig struct {
	OutputDir      string `json:"output_dir"`
	PrefixHostname bool   `json:"prefix_hostname"`
	MaxBytes       int64  `json:"max_bytes"`
	BackupCount    int    `json:"backup_count"`
	MaxOpenFiles   int    `json:"max_open_files,omitempty"`
	HostnameRegexp string `json:"hostname_regexp,omitempty"`
	NodenameRegexp string `json:"nodename_regexp,omitempty"`
	LogPathRegexp  string `json:"log_path_regexp,omitempty"`
	BodyRegexp     string `json:"body_regexp,omitempty"`
}

// NodeConfig configures one node's forwarder and optional file logger.
type NodeConfig struct {
	PullAddress string            `json:"pull_address"`
	PubAddress  string            `json:"pub_address"`
	Topic       string            `json:"topic"`
	HWM         int               `json:"hwm"`
	FileLogger  *FileLoggerConfig `json:"file_logger,omitempty"`
}

// GlobalConfig configures the components that run once for the whole
// pipeline: the archive writer and the subscription aggregator.
type GlobalConfig struct {
	SubListPath        string `json:"sub_list_path"`
	AggregatorPub      string `json:"aggregator_pub_address"`
	AggregatorHWM      int    `json:"aggregator_hwm"`
	ArchivePrefix      string `json:"archive_prefix"`
	ArchiveSuffix      string `json:"archive_suffix"`
	GranularitySeconds int64  `json:"granularity_seconds"`
	WorkDir            string `json:"work_dir"`
	CompleteDir        string `json:"complete_dir"`
}

// Config is the top-level supervisor configuration document.
type Config struct {
	Global GlobalConfig          `json:"global"`
	Nodes  map[string]NodeConfig `json:"nodes"`
}

// LoadConfig reads and validates the JSON configuration at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &xerr.IOError{Op: "read config " + path, Err: err}
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &xerr.ConfigError{Field: "root", Reason: "invalid JSON: " + err.Error()}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every field required by the components it
// configures is present.
func (c *Config) Validate() error {
	g := c.Global
	if g.SubListPath == "" {
		return &xerr.ConfigError{Field: "global.sub_list_path", Reason: "required"}
	}
	if g.AggregatorPub == "" {
		return &xerr.ConfigError{Field: "global.aggregator_pub_address", Reason: "required"}
	}
	if g.ArchivePrefix == "" {
		return &xerr.ConfigError{Field: "global.archive_prefix", Reason: "required"}
	}
	if g.GranularitySeconds <= 0 {
		return &xerr.ConfigError{Field: "global.granularity_seconds", Reason: "must be positive"}
	}
	if g.WorkDir == "" || g.CompleteDir == "" {
		return &xerr.ConfigError{Field: "global.work_dir/complete_dir", Reason: "both are required"}
	}

	if len(c.Nodes) == 0 {
		return &xerr.ConfigError{Field: "nodes", Reason: "at least one node is required"}
	}
	for name, n := range c.Nodes {
		if n.PullAddress == "" {
			return &xerr.ConfigError{Field: "nodes." + name + ".pull_address", Reason: "required"}
		}
		if n.PubAddress == "" {
			return &xerr.ConfigError{Field: "nodes." + name + ".pub_address", Reason: "required"}
		}
		if n.FileLogger != nil && n.FileLogger.OutputDir == "" {
			return &xerr.ConfigError{Field: "nodes." + name + ".file_logger.output_dir", Reason: "required when file_logger is present"}
		}
	}
	return nil
}
