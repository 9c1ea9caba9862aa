package provider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	yamlDoc := []byte("- name: Sunny Days\n  region: Durham\n- name: Little Oaks\n  region: Toronto\n")

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("create encoder: %v", err)
	}
	compressed := encoder.EncodeAll(yamlDoc, nil)
	if err := encoder.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}

	files := map[string][]byte{
		"plain.yaml":      yamlDoc,
		"packed.yaml.zst": compressed,
	}
	for name, data := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				t.Fatal(err)
			}
			got, err := LoadFile(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(got) != 2 || got[1].Region != "Toronto" {
				t.Fatalf("unexpected providers: %+v", got)
			}
		})
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
