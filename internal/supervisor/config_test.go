package supervisor

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func validConfigJSON() string {
	return `{
		"global": {
			"sub_list_path": "/etc/old-log-inn/subs.txt",
			"aggregator_pub_address": "tcp://0.0.0.0:7000",
			"aggregator_hwm": 20000,
			"archive_prefix": "logs.",
			"archive_suffix": ".gz",
			"granularity_seconds": 300,
			"work_dir": "/var/spool/old-log-inn/work",
			"complete_dir": "/var/spool/old-log-inn/complete"
		},
		"nodes": {
			"node1": {
				"pull_address": "tcp://0.0.0.0:6000",
				"pub_address": "tcp://0.0.0.0:6001",
				"topic": "node1",
				"hwm": 20000,
				"file_logger": {
					"output_dir": "/var/log/old-log-inn",
					"prefix_hostname": true,
					"max_bytes": 10485760,
					"backup_count": 5,
					"hostname_regexp": "^node1"
				}
			}
		}
	}`
}

func TestLoadConfigSuccess(t *testing.T) {
	path := writeTempConfig(t, validConfigJSON())

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Global.ArchivePrefix != "logs." || cfg.Global.GranularitySeconds != 300 {
		t.Fatalf("unexpected global section: %+v", cfg.Global)
	}
	node, ok := cfg.Nodes["node1"]
	if !ok {
		t.Fatalf("expected node1 to be present")
	}
	if node.PullAddress != "tcp://0.0.0.0:6000" {
		t.Fatalf("unexpected node1 pull address: %q", node.PullAddress)
	}
	if node.FileLogger == nil || node.FileLogger.OutputDir != "/var/log/old-log-inn" {
		t.Fatalf("unexpected file logger config: %+v", node.FileLogger)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.json")
	if _, err := LoadConfig(missing); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := writeTempConfig(t, `{"global": not json`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestValidateMissingGlobalField(t *testing.T) {
	path := writeTempConfig(t, `{"global": {"archive_prefix": "logs."}, "nodes": {"n": {"pull_address": "a", "pub_address": "b"}}}`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected ConfigError for missing global fields")
	}
}

func TestValidateRequiresAtLeastOneNode(t *testing.T) {
	cfg := `{
		"global": {
			"sub_list_path": "subs.txt",
			"aggregator_pub_address": "tcp://a",
			"archive_prefix": "logs.",
			"granularity_seconds": 60,
			"work_dir": "w",
			"complete_dir": "c"
		},
		"nodes": {}
	}`
	path := writeTempConfig(t, cfg)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected ConfigError for empty nodes")
	}
}

func TestValidateNodeMissingAddress(t *testing.T) {
	cfg := `{
		"global": {
			"sub_list_path": "subs.txt",
			"aggregator_pub_address": "tcp://a",
			"archive_prefix": "logs.",
			"granularity_seconds": 60,
			"work_dir": "w",
			"complete_dir": "c"
		},
		"nodes": {
			"node1": {"pull_address": "tcp://a"}
		}
	}`
	path := writeTempConfig(t, cfg)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected ConfigError for missing node pub_address")
	}
}

func TestValidateFileLoggerRequiresOutputDir(t *testing.T) {
	cfg := `{
		"global": {
			"sub_list_path": "subs.txt",
			"aggregator_pub_address": "tcp://a",
			"archive_prefix": "logs.",
			"granularity_seconds": 60,
			"work_dir": "w",
			"complete_dir": "c"
		},
		"nodes": {
			"node1": {"pull_address": "tcp://a", "pub_address": "tcp://b", "file_logger": {}}
		}
	}`
	path := writeTempConfig(t, cfg)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected ConfigError for file_logger without output_dir")
	}
}
