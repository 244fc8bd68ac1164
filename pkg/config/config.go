// Package config handles loading and managing testscope configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for testscope.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Runner   RunnerConfig   `yaml:"runner"`
	Upload   UploadConfig   `yaml:"upload"`
}

// AnalysisConfig controls project scanning and import resolution.
type AnalysisConfig struct {
	// Exclude lists directory glob patterns skipped by the scanner.
	Exclude []string `yaml:"exclude"`
	// Python is the interpreter used to probe installed packages.
	Python string `yaml:"python"`
	// BaseRef is the default diff base when --base is not given.
	BaseRef string `yaml:"base_ref"`
}

// RunnerConfig controls how selected tests are executed.
type RunnerConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Timeout int      `yaml:"timeout"` // seconds
}

// UploadConfig controls report upload to a testscoped instance.
type UploadConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Exclude: []string{"venv", ".venv", "build", "dist", ".git", "__pycache__"},
			Python:  "python3",
			BaseRef: "origin/main",
		},
		Runner: RunnerConfig{
			Command: "pytest",
			Args:    []string{"-v", "--tb=short", "-n", "auto"},
			Timeout: 600,
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// FindConfigFile looks for .testscope/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".testscope", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CacheDir returns the cache directory for a given project path.
// Uses ~/.cache/testscope/<repo-slug>/ to avoid polluting the repo.
func CacheDir(projectPath string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to temp dir if HOME isn't available
		home = os.TempDir()
	}
	slug := repoSlug(projectPath)
	return filepath.Join(home, ".cache", "testscope", slug)
}

// SnapshotDir returns the graph snapshot storage directory for a project.
func SnapshotDir(projectPath string) string {
	return filepath.Join(CacheDir(projectPath), "snapshots")
}

// HistoryPath returns the run-history database path for a project.
func HistoryPath(projectPath string) string {
	return filepath.Join(CacheDir(projectPath), "history.db")
}

// repoSlug creates a filesystem-safe identifier from a project path.
// Uses the last two path components (e.g., "user_myrepo" from "/home/user/myrepo").
func repoSlug(projectPath string) string {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		abs = projectPath
	}
	// Use last two path components for readability
	dir := filepath.Base(filepath.Dir(abs))
	base := filepath.Base(abs)
	return dir + "_" + base
}

// FindProjectRoot walks up from dir looking for a project marker
// (pyproject.toml, setup.py, setup.cfg, or a .git directory).
func FindProjectRoot(dir string) (string, error) {
	for {
		for _, marker := range []string{"pyproject.toml", "setup.py", "setup.cfg", ".git"} {
			candidate := filepath.Join(dir, marker)
			if _, err := os.Stat(candidate); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("no Python project found (looked for pyproject.toml, setup.py, setup.cfg, or .git)")
}
