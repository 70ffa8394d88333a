package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"infinitetms/internal/session"
)

// cliConfig is the tmsctl configuration file:
//
//	server: http://localhost:8080
//	session_file: ~/.config/tmsctl/session.json
//	renew_period: 14m
//	debug: false
type cliConfig struct {
	Server      string        `yaml:"server"`
	SessionFile string        `yaml:"session_file"`
	RenewPeriod time.Duration `yaml:"renew_period"`
	Debug       bool          `yaml:"debug"`
}

const configEnv = "TMSCTL_CONFIG"

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tmsctl")
	}
	return ".tmsctl"
}

// loadConfig reads path, falling back to $TMSCTL_CONFIG and then the user
// config dir. A missing file yields the defaults.
func loadConfig(path string) (*cliConfig, error) {
	explicit := path != ""
	if path == "" {
		path = os.Getenv(configEnv)
		explicit = path != ""
	}
	if path == "" {
		path = filepath.Join(defaultConfigDir(), "config.yaml")
	}

	cfg := &cliConfig{}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *cliConfig) applyDefaults() {
	if c.Server == "" {
		c.Server = "http://localhost:8080"
	}
	if c.SessionFile == "" {
		c.SessionFile = filepath.Join(defaultConfigDir(), "session.json")
	} else if len(c.SessionFile) > 1 && c.SessionFile[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			c.SessionFile = filepath.Join(home, c.SessionFile[2:])
		}
	}
	if c.RenewPeriod <= 0 {
		c.RenewPeriod = session.DefaultRenewPeriod
	}
}
