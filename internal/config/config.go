// Package config loads the whiro.toml manifest. The manifest carries the
// default instrumentation modes for a project; command-line flags override
// individual fields.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"whiro/internal/monitor"
)

// Config is the root of whiro.toml.
type Config struct {
	Inspect InspectConfig `toml:"inspect"`
	Output  OutputConfig  `toml:"output"`
}

// InspectConfig mirrors the compile-time flags.
type InspectConfig struct {
	OnlyMain bool `toml:"only_main"`
	Stack    bool `toml:"stack"`
	Static   bool `toml:"static"`
	Heap     bool `toml:"heap"`
	Precise  bool `toml:"precise"`
	FullHeap bool `toml:"full_heap"`
}

// OutputConfig controls where rewritten modules go.
type OutputConfig struct {
	Dir string `toml:"dir"`
}

// Options converts the manifest into driver options.
func (c *Config) Options() monitor.Options {
	return monitor.Options{
		OnlyMain: c.Inspect.OnlyMain,
		Stack:    c.Inspect.Stack,
		Static:   c.Inspect.Static,
		Heap:     c.Inspect.Heap,
		Precise:  c.Inspect.Precise,
		FullHeap: c.Inspect.FullHeap,
	}
}

// Find walks up from startDir looking for whiro.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "whiro.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads and decodes a manifest file.
func Load(path string) (*Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%q: unknown key %q", path, undecoded[0].String())
	}
	return &cfg, nil
}

// LoadNearest finds and loads the manifest governing startDir; ok is false
// when no manifest exists, which is not an error.
func LoadNearest(startDir string) (*Config, bool, error) {
	path, ok, err := Find(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}
