package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnvKey, "")
	t.Setenv(dataDirEnvKey, "")
	t.Setenv(payoutRequestEnvKey, "")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("listen addr = %s", cfg.ListenAddr)
	}
	if cfg.StorageDuration() != 24*time.Hour {
		t.Fatalf("storage duration = %v", cfg.StorageDuration())
	}
	if cfg.Path != "" {
		t.Fatalf("unexpected config path %q", cfg.Path)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "satstash.toml")
	contents := `
listen_addr = "127.0.0.1:8080"
data_dir = "/tmp/from-file"
price_per_byte = 0.5
payout_request = "sareqAfromfile"
payout_threshold = 2500
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(configPathEnvKey, path)
	t.Setenv(dataDirEnvKey, "/tmp/from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:8080" {
		t.Fatalf("listen addr = %s", cfg.ListenAddr)
	}
	if cfg.DataDir != "/tmp/from-env" {
		t.Fatalf("env override lost: %s", cfg.DataDir)
	}
	if cfg.PricePerByte != 0.5 || cfg.PayoutThreshold != 2500 {
		t.Fatalf("file values lost: %#v", cfg)
	}
	if cfg.Path != path {
		t.Fatalf("config path = %q", cfg.Path)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	t.Setenv(configPathEnvKey, filepath.Join(t.TempDir(), "absent.toml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.PayoutRequest = "sareqAabc"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	missing := Default()
	if err := missing.Validate(); err == nil {
		t.Fatal("expected error without payout_request")
	}

	badPrice := cfg
	badPrice.PricePerByte = 0
	if err := badPrice.Validate(); err == nil {
		t.Fatal("expected error for zero price")
	}
}
