package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateBackend() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url must be set")
	}
	parsed, err := url.Parse(c.Backend.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("backend.base_url %q is not a valid URL", c.Backend.BaseURL)
	}
	return ensurePositiveMap(map[string]int{
		"backend.request_timeout": c.Backend.RequestTimeout,
		"backend.upload_timeout":  c.Backend.UploadTimeout,
	})
}

func (c *Config) validateSync() error {
	if err := ensurePositiveMap(map[string]int{
		"sync.poll_interval":        c.Sync.PollInterval,
		"sync.probe_interval":       c.Sync.ProbeInterval,
		"sync.error_retry_interval": c.Sync.ErrorRetryInterval,
		"sync.draft_flush_ms":       c.Sync.DraftFlushMillis,
	}); err != nil {
		return err
	}
	if c.Sync.RetryCeiling < 1 {
		return errors.New("sync.retry_ceiling must be >= 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (console or json)", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
