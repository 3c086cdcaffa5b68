package config

import (
	"os"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	c.Backend.AuthToken = strings.TrimSpace(c.Backend.AuthToken)
	c.Backend.DeviceProfile = strings.TrimSpace(c.Backend.DeviceProfile)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	if c.Backend.AuthToken == "" {
		c.Backend.AuthToken = strings.TrimSpace(os.Getenv("FIELDSYNC_AUTH_TOKEN"))
	}
	if c.Backend.DeviceProfile == "" {
		c.Backend.DeviceProfile = defaultDeviceProfile
	}
	return nil
}
