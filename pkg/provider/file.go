package provider

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// LoadFile reads a provider list from path. Files ending in .zst are
// decompressed first and the format is taken from the inner extension.
func LoadFile(path string) ([]Provider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	name := path
	if strings.EqualFold(filepath.Ext(path), ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer dec.Close()
		r = dec
		name = strings.TrimSuffix(path, filepath.Ext(path))
	}

	ps, err := Load(r, FormatFromPath(name))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return ps, nil
}
