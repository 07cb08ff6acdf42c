package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config for the optional YAML file named by CONFIG_FILE.
// Zero values mean "not set" and fall through to the built-in defaults.
//
// Example:
//
//	upstream:
//	  model: google/gemini-3-pro-image-preview
//	generate:
//	  timeout_ms: 20000
//	  overall_timeout_ms: 25000
//	  max_concurrent: 2
type FileConfig struct {
	Upstream struct {
		APIKey   string `yaml:"api_key"`
		BaseURL  string `yaml:"base_url"`
		Model    string `yaml:"model"`
		SiteURL  string `yaml:"site_url"`
		AppTitle string `yaml:"app_title"`
	} `yaml:"upstream"`

	Generate struct {
		TimeoutMs        int `yaml:"timeout_ms"`
		OverallTimeoutMs int `yaml:"overall_timeout_ms"`
		MaxConcurrent    int `yaml:"max_concurrent"`
		MaxTokens        int `yaml:"max_tokens"`
	} `yaml:"generate"`

	Server struct {
		Host                 string `yaml:"host"`
		Port                 int    `yaml:"port"`
		MaxBodyBytes         int64  `yaml:"max_body_bytes"`
		AllowSelfSignedCerts bool   `yaml:"allow_self_signed_certs"`
	} `yaml:"server"`

	Log struct {
		DevMode bool   `yaml:"dev_mode"`
		Level   string `yaml:"level"`
		File    string `yaml:"file"`
	} `yaml:"log"`

	History struct {
		DBPath        string `yaml:"db_path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"history"`
}

// LoadConfigFile reads and decodes a YAML configuration file.
func LoadConfigFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrConfigFileUnreadable(path, err.Error())
	}
	return ParseConfigFile(data)
}

// ParseConfigFile decodes YAML configuration bytes.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func ParseConfigFile(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("core: invalid config file: %w", err)
	}
	return &cfg, nil
}
