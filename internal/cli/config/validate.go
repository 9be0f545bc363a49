package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// MaxLogsPageSize bounds logs_page_size.
const MaxLogsPageSize = 500

var outputModes = []string{"", "auto", "text", "markdown", "json"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if err := checkURL("api_url", c.APIURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if c.WSURL != "" {
		if err := checkURL("ws_url", c.WSURL, "ws", "wss"); err != nil {
			errs = append(errs, err)
		}
	}
	if !slices.Contains(outputModes, c.OutputFormat) {
		errs = append(errs, fmt.Errorf("output must be one of auto, text, markdown, json (got %q)", c.OutputFormat))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive (got %s)", c.Timeout))
	}
	if c.Heartbeat <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat must be positive (got %s)", c.Heartbeat))
	}
	if c.LogsPageSize < 1 || c.LogsPageSize > MaxLogsPageSize {
		errs = append(errs, fmt.Errorf("logs_page_size must be between 1 and %d (got %d)", MaxLogsPageSize, c.LogsPageSize))
	}
	if strings.TrimSpace(c.Session) == "" {
		errs = append(errs, errors.New("session is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func checkURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid url: %w", key, err)
	}
	if !slices.Contains(schemes, u.Scheme) || u.Host == "" {
		return fmt.Errorf("%s must be an absolute %s url (got %q)", key, strings.Join(schemes, " or "), raw)
	}
	return nil
}
