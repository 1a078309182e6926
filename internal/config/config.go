// Package config loads the apitree.yaml project file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the project configuration file.
const FileName = "apitree.yaml"

// Module is one package tree to build.
type Module struct {
	Name  string `yaml:"name"`
	Path  string `yaml:"path"`
	Alias string `yaml:"alias,omitempty"`
}

// Config is the content of apitree.yaml. Relative paths are resolved
// against the directory holding the file.
type Config struct {
	DB             string   `yaml:"db,omitempty"`
	Modules        []Module `yaml:"modules"`
	Exclude        []string `yaml:"exclude,omitempty"`
	ExcludeScripts []string `yaml:"exclude_scripts,omitempty"`
	ScriptsDir     string   `yaml:"scripts_dir,omitempty"`
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolve(filepath.Dir(path))
	return &cfg, nil
}

// Find walks up from dir looking for FileName. ok is false when no
// directory up to the filesystem root has one.
func Find(dir string) (string, bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Validate checks that every module has a name and that names are not
// repeated under the same alias.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Modules))
	var errs []error
	for i, m := range c.Modules {
		if m.Name == "" {
			errs = append(errs, fmt.Errorf("modules[%d]: name is required", i))
			continue
		}
		key := m.Name + "\x00" + m.Alias
		if seen[key] {
			errs = append(errs, fmt.Errorf("modules[%d]: %s listed twice", i, m.Name))
		}
		seen[key] = true
	}
	return errors.Join(errs...)
}

func (c *Config) resolve(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.DB = abs(c.DB)
	c.ScriptsDir = abs(c.ScriptsDir)
	for i := range c.Modules {
		if c.Modules[i].Path == "" {
			c.Modules[i].Path = "."
		}
		c.Modules[i].Path = abs(c.Modules[i].Path)
	}
	for i := range c.ExcludeScripts {
		c.ExcludeScripts[i] = abs(c.ExcludeScripts[i])
	}
}
