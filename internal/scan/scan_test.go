package scan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeExts(t *testing.T) {
	set := NormalizeExts([]string{"jpg", ".PNG", " gif ", ""})
	for _, want := range []string{".jpg", ".png", ".gif"} {
		if _, ok := set[want]; !ok {
			t.Fatalf("expected %s in set, got %#v", want, set)
		}
	}
	if len(set) != 3 {
		t.Fatalf("expected 3 extensions, got %#v", set)
	}
}

func TestScanFiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "B.JPG", "c.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := Scan(dir, NormalizeExts([]string{"jpg"}))
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("expected 2 matches, got %#v", files)
	}
	for _, want := range []string{"a.jpg", "B.JPG"} {
		if _, ok := files[want]; !ok {
			t.Fatalf("expected %s in result, got %#v", want, files)
		}
	}
}

func TestScanUnreadableDir(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "missing"), NormalizeExts([]string{"jpg"})); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestScanSeesRenamesNotRewrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	exts := NormalizeExts([]string{"jpg"})
	first, err := Scan(dir, exts)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	// Rewriting content must not change what the scanner reports.
	if err := os.WriteFile(path, []byte("yy"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	second, err := Scan(dir, exts)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("expected identical snapshots, got %#v vs %#v", first, second)
	}
	for name := range first {
		if _, ok := second[name]; !ok {
			t.Fatalf("expected %s in second snapshot", name)
		}
	}
}
