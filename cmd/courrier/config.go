package main

import (
	"fmt"
	"os"

	"github.com/hazyhaar/courrier/enrich"
	"github.com/hazyhaar/courrier/mailroom"
	"gopkg.in/yaml.v3"
)

// Config holds the full courrier configuration.
type Config struct {
	Listen   string          `yaml:"listen"`
	DBPath   string          `yaml:"db_path"`
	BlobDir  string          `yaml:"blob_dir"`
	Mailroom mailroom.Config `yaml:"mailroom"`
	Feedpoll FeedpollConfig  `yaml:"feedpoll"`
	Enrich   enrich.Config   `yaml:"enrich"`
}

// FeedpollConfig is the YAML-facing poller configuration.
type FeedpollConfig struct {
	CheckIntervalSeconds int `yaml:"check_interval_seconds"`
	FetchTimeoutSeconds  int `yaml:"fetch_timeout_seconds"`
	MaxBytes             int `yaml:"max_bytes"`
	// MinWordCount flags documents below this many words for content
	// enrichment. 0 disables the handoff.
	MinWordCount int `yaml:"min_word_count"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:  ":8086",
		DBPath:  "courrier.db",
		BlobDir: "blobs",
	}
}

// LoadConfig reads and parses a YAML config file, merged over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.BlobDir == "" {
		return fmt.Errorf("blob_dir is required")
	}
	if c.Enrich.Enabled && c.Enrich.BackendURL == "" {
		return fmt.Errorf("enrich.backend_url is required when enrich is enabled")
	}
	return nil
}
