package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoadServerAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "max_clients: 3\n")
	cfg, err := LoadServer(path)
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	if cfg.ListenPort != 1234 {
		t.Errorf("expected default listen_port 1234, got %d", cfg.ListenPort)
	}
	if cfg.BitDepth != 16 {
		t.Errorf("expected default bit_depth 16, got %d", cfg.BitDepth)
	}
	if cfg.Compression != CompressionNone {
		t.Errorf("expected default compression none, got %q", cfg.Compression)
	}
	if cfg.MaxClients != 3 {
		t.Errorf("expected max_clients 3 preserved, got %d", cfg.MaxClients)
	}
}

func TestLoadServerRejectsBadBitDepth(t *testing.T) {
	path := writeConfig(t, "bit_depth: 12\n")
	if _, err := LoadServer(path); err == nil {
		t.Fatal("expected error for invalid bit_depth")
	}
}

func TestLoadServerRejectsFLACAt32Bit(t *testing.T) {
	path := writeConfig(t, "bit_depth: 32\ncompression: flac\n")
	if _, err := LoadServer(path); err == nil {
		t.Fatal("expected error for flac + 32-bit combination")
	}
}

func TestLoadServerRejectsMismatchedTLSPaths(t *testing.T) {
	path := writeConfig(t, "cert_path: /tmp/cert.pem\n")
	if _, err := LoadServer(path); err == nil {
		t.Fatal("expected error for cert_path without key_path")
	}
}

func TestLoadClientDefaultsReconnectDelay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	if err := os.WriteFile(path, []byte("server_address: 127.0.0.1\n"), 0644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.ReconnectDelayMS != 500 {
		t.Errorf("expected default reconnect delay 500ms, got %d", cfg.ReconnectDelayMS)
	}
}
