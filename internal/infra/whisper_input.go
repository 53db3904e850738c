package infra

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadWAVSamples loads a wav file as mono float32 samples in [-1, 1].
func ReadWAVSamples(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	mono, rate, err := decodeWAV(f)
	if err != nil {
		return nil, 0, fmt.Errorf("read wav %s: %w", filepath.Base(path), err)
	}
	out := make([]float32, len(mono))
	for i, v := range mono {
		out[i] = float32(v)
	}
	return out, rate, nil
}

// FindModelFile resolves the model weights inside dir: the configured
// name when given, otherwise the first *.bin file in lexical order.
func FindModelFile(dir, name string) (string, error) {
	if name != "" {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("model file: %w", err)
		}
		return path, nil
	}

	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".bin") {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan model dir: %w", err)
	}
	if len(found) == 0 {
		return "", fmt.Errorf("no *.bin model file under %s", dir)
	}
	sort.Strings(found)
	return found[0], nil
}
