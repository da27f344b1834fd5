package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("unexpected log defaults: %+v", cfg.Log)
	}
	if cfg.Extract.Dir != "." || cfg.Extract.Compress {
		t.Errorf("unexpected extract defaults: %+v", cfg.Extract)
	}
	if cfg.Database != "" {
		t.Errorf("Database = %q, want empty", cfg.Database)
	}
}

func TestLoadPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	content := `database: qx_cso
log:
  level: debug
extract:
  compress: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database != "qx_cso" {
		t.Errorf("Database = %q, want qx_cso", cfg.Database)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	// Missing keys keep their defaults.
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want text", cfg.Log.Format)
	}
	if !cfg.Extract.Compress || cfg.Extract.Dir != "." {
		t.Errorf("unexpected extract config: %+v", cfg.Extract)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("log: [unterminated"), 0644)
	if _, err := Load(bad); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
