// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config assembles agent configuration from the environment,
// optionally overlaid with a YAML file for CLI use. Every knob has a
// working default so a bare `atlas serve` comes up without any
// environment at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the resolved agent configuration.
type Config struct {
	// Port is the HTTP/WebSocket listen port.
	Port int `yaml:"port" validate:"gt=0,lte=65535"`

	// ApprovalRequired forces the approval gate for every code-change
	// workflow regardless of intent or impact grading.
	ApprovalRequired bool `yaml:"approval_required"`

	// TestTimeout bounds each test/lint/typecheck subprocess.
	TestTimeout time.Duration `yaml:"test_timeout" validate:"gt=0"`

	// FanThreshold is the fan-in/out count above which a module is
	// considered a hub during impact analysis.
	FanThreshold int `yaml:"fan_threshold" validate:"gte=1"`

	// CloneRoot is the directory repositories are cloned under.
	CloneRoot string `yaml:"clone_root" validate:"required"`

	// JournalPath is the badger directory for session journaling.
	JournalPath string `yaml:"journal_path" validate:"required"`

	// Debug keeps gin in debug mode and text logs on a TTY.
	Debug bool `yaml:"debug"`

	Neo4j Neo4jConfig `yaml:"neo4j"`
	Git   GitConfig   `yaml:"git"`
}

// Neo4jConfig configures the graph store connection. An empty URI
// means no graph database; the store runs on the file cache alone.
type Neo4jConfig struct {
	URI        string        `yaml:"uri"`
	User       string        `yaml:"user"`
	Password   string        `yaml:"password"`
	Database   string        `yaml:"database"`
	MaxRetries int           `yaml:"max_retries" validate:"gte=0"`
	RetryDelay time.Duration `yaml:"retry_delay" validate:"gte=0"`
	BatchSize  int           `yaml:"batch_size" validate:"gte=1"`
}

// GitConfig is the identity commits are authored with.
type GitConfig struct {
	UserName  string `yaml:"user_name" validate:"required"`
	UserEmail string `yaml:"user_email" validate:"required,email"`
}

// FromEnv builds a Config from environment variables, falling back to
// defaults, and validates it.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:             getEnvInt("AGENT_PORT", 8080),
		ApprovalRequired: getEnvBool("AGENT_APPROVAL_REQUIRED", true),
		TestTimeout:      time.Duration(getEnvInt("AGENT_TEST_TIMEOUT_SECONDS", 300)) * time.Second,
		FanThreshold:     getEnvInt("AGENT_PKG_FAN_THRESHOLD", 3),
		CloneRoot:        getEnvString("AGENT_CLONE_ROOT", "./cloned_repos"),
		JournalPath:      getEnvString("AGENT_JOURNAL_PATH", "./agent_journal"),
		Debug:            getEnvBool("AGENT_DEBUG", false),
		Neo4j: Neo4jConfig{
			URI:        getEnvString("NEO4J_URI", ""),
			User:       getEnvString("NEO4J_USER", "neo4j"),
			Password:   getEnvString("NEO4J_PASSWORD", ""),
			Database:   getEnvString("NEO4J_DATABASE", "neo4j"),
			MaxRetries: getEnvInt("NEO4J_MAX_RETRIES", 3),
			RetryDelay: time.Duration(getEnvFloat("NEO4J_RETRY_DELAY", 1.0) * float64(time.Second)),
			BatchSize:  getEnvInt("NEO4J_BATCH_SIZE", 1000),
		},
		Git: GitConfig{
			UserName:  getEnvString("GIT_USER_NAME", "Agent"),
			UserEmail: getEnvString("GIT_USER_EMAIL", "agent@example.com"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromFile overlays the YAML file at path onto the environment-derived
// configuration. File values win over environment values.
func FromFile(path string) (Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the struct tags.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// GraphDBConfigured reports whether a Neo4j endpoint is set.
func (c Config) GraphDBConfigured() bool {
	return c.Neo4j.URI != ""
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
