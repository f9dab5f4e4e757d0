package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := ioutil.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadNodeConfigAppliesOverridesAndDefaults(t *testing.T) {
	path := writeTemp(t, "pownode.toml", `
port = 6000
node_ports = [6000, 6001, 6002]
difficulty = 3
`)
	cfg, err := LoadNodeConfig(path)
	if err != nil {
		t.Fatalf("LoadNodeConfig: %v", err)
	}
	if cfg.Port != 6000 || cfg.Difficulty != 3 || len(cfg.NodePorts) != 3 {
		t.Fatalf("unexpected overrides applied: %+v", cfg)
	}
	if cfg.Host != "127.0.0.1" {
		t.Fatalf("expected default host to survive, got %q", cfg.Host)
	}
	if cfg.RegistryPath != "./data/registry.sqlite3" {
		t.Fatalf("expected default registry path to survive, got %q", cfg.RegistryPath)
	}
}

func TestLoadAppServerConfigDefaults(t *testing.T) {
	path := writeTemp(t, "appserver.toml", "")
	cfg, err := LoadAppServerConfig(path)
	if err != nil {
		t.Fatalf("LoadAppServerConfig: %v", err)
	}
	if cfg.TxTimeoutSeconds != 600 {
		t.Fatalf("expected default 600s tx timeout, got %d", cfg.TxTimeoutSeconds)
	}
}
