// Package config provides configuration management for the CampaignHQ CLI.
package config

import "time"

// Config holds all CLI configuration options.
type Config struct {
	APIURL       string        `koanf:"api_url"`
	WSURL        string        `koanf:"ws_url"`
	StatePath    string        `koanf:"state_path"`
	Session      string        `koanf:"session"`
	Verbose      bool          `koanf:"verbose"`
	OutputFormat string        `koanf:"output"`
	Timeout      time.Duration `koanf:"timeout"`
	LogsPageSize int           `koanf:"logs_page_size"`
	Heartbeat    time.Duration `koanf:"heartbeat"`
	Token        string        `koanf:"token"`

	// ProjectRoot is the directory holding campaignhq.yaml, or the working
	// directory when no config file was found.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultAPIURL       = "http://localhost:8000"
	DefaultStateFile    = ".campaignhq/state.db"
	DefaultSession      = "default"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultTimeout      = 30 * time.Second
	DefaultLogsPageSize = 50
	DefaultHeartbeat    = 20 * time.Second
)

// Defaults returns a config populated with default values.
func Defaults() *Config {
	return &Config{
		APIURL:       DefaultAPIURL,
		StatePath:    DefaultStateFile,
		Session:      DefaultSession,
		OutputFormat: DefaultOutput,
		Timeout:      DefaultTimeout,
		LogsPageSize: DefaultLogsPageSize,
		Heartbeat:    DefaultHeartbeat,
	}
}
