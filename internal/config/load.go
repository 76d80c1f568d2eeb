package config

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// envFiles are tried in order next to the configuration file; the first one
// that loads wins. Existing process environment variables are never overwritten.
var envFiles = []string{".env", ".env.local"}

// loadEnvFile loads the first available env file from dir.
func loadEnvFile(dir string) {
	for _, name := range envFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			slog.Warn("Failed to load env file", "path", path, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "path", path)
		return
	}
}

// Load reads a YAML configuration file. ${VAR} references are expanded from the
// environment after .env files next to the configuration have been loaded.
// A relative base_directory resolves against the configuration file's directory.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve configuration path").Build()
	}
	dir := filepath.Dir(abs)
	loadEnvFile(dir)

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ferrors.ConfigError("configuration file not found").WithContext("path", abs).Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read configuration file").Build()
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "parse configuration file").
			WithContext("path", abs).Build()
	}

	if cfg.BaseDirectory == "" {
		cfg.BaseDirectory = dir
	} else if !filepath.IsAbs(cfg.BaseDirectory) {
		cfg.BaseDirectory = filepath.Join(dir, cfg.BaseDirectory)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns defaults rooted at the current
// directory when path does not exist and missingOK is set.
func LoadOrDefault(path string, missingOK bool) (*Config, error) {
	if _, err := os.Stat(path); missingOK && errors.Is(err, os.ErrNotExist) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "resolve working directory").Build()
		}
		loadEnvFile(wd)
		return &Config{BaseDirectory: wd}, nil
	}
	return Load(path)
}
