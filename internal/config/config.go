// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the pkgsmith configuration file.
//
// Values are applied in order: defaults, the TOML file, then PKGSMITH_*
// environment variables. Command-line flags override the result.
package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"

	"github.com/goplus/pkgsmith/internal/env"
	"github.com/goplus/pkgsmith/internal/errors"
)

// Config is the user configuration.
type Config struct {
	WorkDir    string   `toml:"work_dir"`
	RecipeDirs []string `toml:"recipe_dirs"`
	// RecipeRepo is a git URL of a repository holding recipe files.
	RecipeRepo    string `toml:"recipe_repo"`
	RecipeRepoRef string `toml:"recipe_repo_ref"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	// Jobs is the parallelism passed to build tools; 0 lets them decide.
	Jobs            int      `toml:"jobs"`
	MaxConcurrent   int      `toml:"max_concurrent"`
	StrictPlatforms bool     `toml:"strict_platforms"`
	Generators      []string `toml:"generators"`

	Tools   Tools   `toml:"tools"`
	CMake   CMake   `toml:"cmake"`
	Metrics Metrics `toml:"metrics"`
	OCI     OCI     `toml:"oci"`
}

// Tools overrides the executables looked up in PATH.
type Tools struct {
	Git    string `toml:"git"`
	CMake  string `toml:"cmake"`
	Make   string `toml:"make"`
	Cargo  string `toml:"cargo"`
	Rustup string `toml:"rustup"`
}

// CMake holds cmake defaults.
type CMake struct {
	Generator string `toml:"generator"`
	// Toolchain is passed as CMAKE_TOOLCHAIN_FILE.
	Toolchain string `toml:"toolchain"`
}

// Metrics configures the metrics text file.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// OCI holds registry defaults for push.
type OCI struct {
	Registry    string `toml:"registry"`
	Repository  string `toml:"repository"`
	PlainHTTP   bool   `toml:"plain_http"`
	InsecureTLS bool   `toml:"insecure_tls"`
}

// NewDefaultConfig returns the configuration used when no file exists.
func NewDefaultConfig() *Config {
	workDir, err := env.WorkDir()
	if err != nil {
		workDir = filepath.Join(os.TempDir(), "pkgsmith")
	}
	return &Config{
		WorkDir:       workDir,
		LogLevel:      "info",
		LogFormat:     "console",
		MaxConcurrent: 2,
		Tools: Tools{
			Git:    "git",
			CMake:  "cmake",
			Make:   "make",
			Cargo:  "cargo",
			Rustup: "rustup",
		},
	}
}

// Load reads the default configuration file, if there is one.
func Load() (*Config, error) {
	path, err := env.ConfigFile()
	if err != nil {
		return nil, err
	}
	explicit := os.Getenv("PKGSMITH_CONFIG") != ""
	if _, err := os.Stat(path); !explicit && errors.Is(err, fs.ErrNotExist) {
		path = ""
	}
	return LoadFromFile(path)
}

// LoadFromFile loads defaults, then path (skipped when empty), then
// environment overrides.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.KindConfiguration, err, "read config file")
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, errors.Wrap(errors.KindConfiguration, err, "parse config file %s", path)
		}
	}
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnvOverrides(config *Config) error {
	if dir := os.Getenv("PKGSMITH_WORK_DIR"); dir != "" {
		config.WorkDir = dir
	}
	if level := os.Getenv("PKGSMITH_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	if format := os.Getenv("PKGSMITH_LOG_FORMAT"); format != "" {
		config.LogFormat = format
	}
	if n := os.Getenv("PKGSMITH_MAX_CONCURRENT"); n != "" {
		v, err := strconv.Atoi(n)
		if err != nil {
			return errors.Configuration("PKGSMITH_MAX_CONCURRENT: %v", err)
		}
		config.MaxConcurrent = v
	}
	if strict := os.Getenv("PKGSMITH_STRICT_PLATFORMS"); strict != "" {
		v, err := strconv.ParseBool(strict)
		if err != nil {
			return errors.Configuration("PKGSMITH_STRICT_PLATFORMS: %v", err)
		}
		config.StrictPlatforms = v
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.WorkDir == "" {
		return errors.Configuration("work_dir is empty")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Configuration("log_level: %v", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return errors.Configuration("log_format: unknown format %q (want console or json)", c.LogFormat)
	}
	if c.MaxConcurrent < 1 {
		return errors.Configuration("max_concurrent must be at least 1, got %d", c.MaxConcurrent)
	}
	if c.Jobs < 0 {
		return errors.Configuration("jobs must not be negative, got %d", c.Jobs)
	}
	return nil
}

// String renders the configuration as TOML.
func (c *Config) String() string {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%+v", *c)
	}
	return string(data)
}
