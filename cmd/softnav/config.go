package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the softnav.yaml schema.
type fileConfig struct {
	// Root bounds visitability. Empty = origin root of the start URL.
	Root string `yaml:"root"`

	UserAgent   string `yaml:"user_agent"`
	MaxBodySize int64  `yaml:"max_body_size"`

	// CacheSize bounds the snapshot cache.
	CacheSize int `yaml:"cache_size"`

	// VisitLog is the path of the SQLite visit log. Empty = no log.
	VisitLog string `yaml:"visit_log"`

	ProgressBarDelay time.Duration `yaml:"progress_bar_delay"`

	Browser browserConfig `yaml:"browser"`
}

type browserConfig struct {
	// Remote is the WebSocket URL of an external Chrome. Empty = launch.
	Remote  string `yaml:"remote"`
	Headful bool   `yaml:"headful"`
}

func loadConfigFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *fileConfig) applyDefaults() {
	if c.CacheSize <= 0 {
		c.CacheSize = 10
	}
	if c.ProgressBarDelay <= 0 {
		c.ProgressBarDelay = 500 * time.Millisecond
	}
}
