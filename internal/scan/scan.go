package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// NormalizeExts builds the lowercase extension lookup set used by Scan.
// Entries may be given with or without the leading dot.
func NormalizeExts(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

// Scan lists the regular files in dir whose extension matches the set.
// It reflects the directory at call time; nothing is cached between calls.
func Scan(dir string, exts map[string]struct{}) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	files := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if info, err := entry.Info(); err != nil || !info.Mode().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := exts[ext]; ok {
			files[entry.Name()] = struct{}{}
		}
	}
	return files, nil
}
