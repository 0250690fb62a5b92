// Package config loads the deploy configuration. Environment layers are
// merged and expanded once, before target construction; nothing in the
// transport core reads the environment afterwards.
package config

import (
	"fmt"
	"os"

	"example.com/convoy/pkg/logger"
	"example.com/convoy/pkg/models"
	"gopkg.in/yaml.v3"
)

// DefaultRemotePath is where the artifact lands when the config is silent.
const DefaultRemotePath = "/tmp/images.tar.gz"

// ArtifactConfig names the local artifact and how to (re)build it.
type ArtifactConfig struct {
	Path         string `yaml:"path"`
	BuildCommand string `yaml:"build_command,omitempty"`
}

// Config is the full deploy configuration.
type Config struct {
	Artifact   ArtifactConfig          `yaml:"artifact"`
	RemotePath string                  `yaml:"remote_path,omitempty"`
	Transport  models.TransportOptions `yaml:"transport,omitempty"`
	Targets    []models.Target         `yaml:"targets"`
	Env        map[string]string       `yaml:"env,omitempty"`
	EnvFiles   []string                `yaml:"env_files,omitempty"`
	Post       *models.PostAction      `yaml:"post,omitempty"`
}

// Load reads, expands and parses the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// First pass only extracts the env layers so they can be applied to the
	// rest of the document.
	var envOnly struct {
		Env      map[string]string `yaml:"env"`
		EnvFiles []string          `yaml:"env_files"`
	}
	if err := yaml.Unmarshal(data, &envOnly); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	layers := []Layer{SystemLayer()}
	for _, file := range envOnly.EnvFiles {
		layer, err := FileLayer(file)
		if err != nil {
			logger.Logger.Warn("env file not loaded", "path", file, "error", err)
			continue
		}
		layers = append(layers, layer)
	}
	if len(envOnly.Env) > 0 {
		layers = append(layers, Layer(envOnly.Env))
	}
	vars := MergeLayers(layers...)

	expanded, err := Expand(string(data), vars)
	if err != nil {
		return nil, fmt.Errorf("expand config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.RemotePath == "" {
		cfg.RemotePath = DefaultRemotePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Logger.Info("configuration loaded", "path", path, "targets", len(cfg.Targets))
	return cfg, nil
}

// Validate checks the minimum the pipeline needs; it is not a schema check.
func (c *Config) Validate() error {
	if c.Artifact.Path == "" {
		return fmt.Errorf("artifact.path is required")
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}
	for i, t := range c.Targets {
		if t.Host == "" {
			return fmt.Errorf("target %d is missing a host", i)
		}
	}
	return nil
}
