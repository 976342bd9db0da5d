package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"whiro/internal/config"
)

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "whiro.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[inspect]
only_main = true
heap = true
full_heap = true

[output]
dir = "out"
`)
	cfg, ok, err := config.LoadNearest(dir)
	if err != nil || !ok {
		t.Fatalf("LoadNearest: ok=%v err=%v", ok, err)
	}
	opts := cfg.Options()
	if !opts.OnlyMain || !opts.Heap || !opts.FullHeap {
		t.Errorf("options = %+v", opts)
	}
	if opts.Stack || opts.Static || opts.Precise {
		t.Errorf("unset flags leaked: %+v", opts)
	}
	if cfg.Output.Dir != "out" {
		t.Errorf("output dir = %q", cfg.Output.Dir)
	}
}

// TestFindWalksUp: the manifest governs nested directories.
func TestFindWalksUp(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[inspect]\nstack = true\n")
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	path, ok, err := config.Find(nested)
	if err != nil || !ok {
		t.Fatalf("Find: ok=%v err=%v", ok, err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("found %q, want manifest in %q", path, dir)
	}
}

func TestUnknownKeyRejected(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[inspect]\nbogus = true\n")
	if _, err := config.Load(filepath.Join(dir, "whiro.toml")); err == nil {
		t.Error("unknown key accepted")
	}
}

func TestNoManifest(t *testing.T) {
	// An isolated directory tree has no manifest; that is not an error.
	dir := t.TempDir()
	_, ok, err := config.LoadNearest(dir)
	if err != nil {
		t.Fatalf("LoadNearest: %v", err)
	}
	if ok {
		t.Skip("a whiro.toml exists above the temp dir")
	}
}
