package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Oracle.Model != "claude-haiku-4-5" {
		t.Errorf("Oracle.Model = %q, want default", cfg.Oracle.Model)
	}
	if cfg.Storage.BibliostoreDSN != "bibliofind.db" {
		t.Errorf("Storage.BibliostoreDSN = %q, want default", cfg.Storage.BibliostoreDSN)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Server.ListenAddr = %q, want default", cfg.Server.ListenAddr)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "oracle:\n  model: claude-opus-4-1\nstorage:\n  bibliostore_dsn: /data/catalog.db\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Oracle.Model != "claude-opus-4-1" {
		t.Errorf("Oracle.Model = %q, want file override", cfg.Oracle.Model)
	}
	if cfg.Storage.BibliostoreDSN != "/data/catalog.db" {
		t.Errorf("Storage.BibliostoreDSN = %q, want file override", cfg.Storage.BibliostoreDSN)
	}
	if cfg.Storage.SessionDSN != "sessions.db" {
		t.Errorf("Storage.SessionDSN = %q, want untouched default", cfg.Storage.SessionDSN)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "oracle:\n  api_key: from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("BIBLIOFIND_ORACLE_API_KEY", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Oracle.APIKey != "from-env" {
		t.Errorf("Oracle.APIKey = %q, want env override", cfg.Oracle.APIKey)
	}
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
}
