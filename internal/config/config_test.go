package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BlockLimit != 500 || cfg.CodebookK != 128 || cfg.Alpha != 0.7 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.IDColumn != "track_id" || len(cfg.TextFields) != 4 {
		t.Errorf("corpus defaults = %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quaver.yaml")
	content := "data_dir: /tmp/quaver\nblock_limit: 50\ncodebook_k: 64\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "/tmp/quaver" || cfg.BlockLimit != 50 || cfg.CodebookK != 64 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.TopK != 10 {
		t.Errorf("unset key lost its default: %+v", cfg)
	}
	if cfg.MetadataDBPath() != filepath.Join("/tmp/quaver", "metadata.db") {
		t.Errorf("db path = %s", cfg.MetadataDBPath())
	}
}
